package testutil

// Sample tables files

// PricesTablesJSON is a one-table grid reading prices from a remote source.
// Replace PRICES_URL before use.
var PricesTablesJSON = `{
  "tables": [[
    {
      "id": "prices",
      "table_header": "Prices",
      "column_headers": ["Name", "Price"],
      "column_ratios": [50, 50],
      "max_cell_height": 2,
      "source": {"type": "http", "url": "PRICES_URL", "refresh_seconds": 10, "mapping": ["name", "price"]}
    }
  ]]
}`

// MixedTablesJSON has one table of each source kind across two rows.
// Replace DATA_PATH and DATA_URL before use.
var MixedTablesJSON = `{
  // static notes next to a local file
  "tables": [
    [
      {"id": "notes", "column_headers": ["Note"], "source": {"type": "static", "data": [["hello"], ["world"]]}},
      {"id": "local", "column_headers": ["Name"], "source": {"type": "file", "path": "DATA_PATH", "mapping": ["name"]}},
    ],
    [
      {"id": "remote", "column_headers": ["Name", "Price"], "source": {"type": "http", "url": "DATA_URL", "refresh": "5s", "mapping": ["name", "price"]}}
    ]
  ]
}`

// StaticTablesJSON is a single static table.
var StaticTablesJSON = `{"tables": [[{"id": "notes", "column_headers": ["Note"], "source": {"type": "static", "data": [["hello"]]}}]]}`

// Sample source payloads

// PricesPayload is a remote price list.
var PricesPayload = `[{"name": "A", "price": 1.5}, {"name": "B", "price": 2}]`

// PricesPayloadMissingField has an element without a price.
var PricesPayloadMissingField = `[{"name": "A", "price": 1.5}, {"name": "C"}]`

// NotAnArrayPayload is valid JSON with an object root.
var NotAnArrayPayload = `{"name": "A"}`
