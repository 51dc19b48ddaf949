package mcpserver

// OperationFormatContract describes the canonical batch operation format
// that LLM consumers should follow when mutating the graph.
const OperationFormatContract = `# Dagaz Operation Format Contract

Every mutation is a JSON array of operation objects applied in order as ONE
transaction: if any operation fails, the whole batch rolls back and nothing
is persisted.

## Envelope

Each operation object carries an ` + "`" + `op` + "`" + ` discriminant plus op-specific fields:

` + "```" + `json
[
  {"op": "create_node", "id": "write-report", "text": "Write the report"},
  {"op": "create_node", "id": "review", "text": "Review the report"},
  {"op": "link", "from_id": "review", "to_id": "write-report"}
]
` + "```" + `

## Graph operations (apply_operations)

- ` + "`" + `create_node` + "`" + ` — fields: ` + "`" + `id` + "`" + ` (required), ` + "`" + `text` + "`" + `, ` + "`" + `node_type` + "`" + ` (Task, And, Or, Not,
  ExactlyOne; default Task), ` + "`" + `completed` + "`" + ` (Task only), ` + "`" + `due` + "`" + ` (unix seconds),
  ` + "`" + `depends` + "`" + ` / ` + "`" + `blocks` + "`" + ` (arrays of existing node ids to link on creation).
- ` + "`" + `update_node` + "`" + ` — ` + "`" + `id` + "`" + ` required; ` + "`" + `text` + "`" + `, ` + "`" + `completed` + "`" + `, ` + "`" + `node_type` + "`" + `, ` + "`" + `due` + "`" + ` optional.
  Omitted fields are untouched. JSON ` + "`" + `null` + "`" + ` clears a field (` + "`" + `completed` + "`" + ` cannot be null).
- ` + "`" + `delete_node` + "`" + ` — ` + "`" + `id` + "`" + `. Edges and plan/view references are cleaned up automatically.
- ` + "`" + `rename_node` + "`" + ` — ` + "`" + `id` + "`" + `, ` + "`" + `new_id` + "`" + `. All references follow the rename.
- ` + "`" + `link` + "`" + ` — ` + "`" + `from_id` + "`" + ` depends on ` + "`" + `to_id` + "`" + `. Cycles are rejected; redundant
  transitive edges are removed automatically.
- ` + "`" + `unlink` + "`" + ` — ` + "`" + `from_id` + "`" + `, ` + "`" + `to_id` + "`" + `. Removing an absent edge is not an error.
- ` + "`" + `create_plan` + "`" + ` / ` + "`" + `update_plan` + "`" + ` / ` + "`" + `delete_plan` + "`" + ` / ` + "`" + `rename_plan` + "`" + ` — ordered step
  lists over existing nodes. Steps: ` + "`" + `[{"node_id": "...", "order": 1.5}, ...]` + "`" + `.

## Display operations (apply_display_operations)

- ` + "`" + `create_view` + "`" + ` — ` + "`" + `id` + "`" + ` required; ` + "`" + `positions` + "`" + ` (map node id -> [x, y]),
  ` + "`" + `whitelist` + "`" + ` / ` + "`" + `blacklist` + "`" + ` (arrays of node ids) optional.
- ` + "`" + `update_view` + "`" + ` — partial update; creates the view if absent.
- ` + "`" + `update_positions` + "`" + ` — ` + "`" + `view_id` + "`" + `, ` + "`" + `positions` + "`" + `. Merges into existing positions;
  creates the view if absent.
- ` + "`" + `remove_positions` + "`" + ` — ` + "`" + `view_id` + "`" + `, ` + "`" + `node_ids` + "`" + `. Absent entries are ignored.
- ` + "`" + `set_whitelist` + "`" + ` / ` + "`" + `set_blacklist` + "`" + ` — ` + "`" + `view_id` + "`" + `, ` + "`" + `node_ids` + "`" + `. An empty array
  clears the filter. Creates the view if absent.
- ` + "`" + `delete_view` + "`" + ` — ` + "`" + `id` + "`" + `. Deleting an absent view is not an error.

## Node types

- ` + "`" + `Task` + "`" + ` — the only type with its own ` + "`" + `completed` + "`" + ` flag. Its calculated value is
  true when it is completed AND all its dependencies are satisfied.
- ` + "`" + `And` + "`" + ` — true when every dependency is true (vacuously true with none).
- ` + "`" + `Or` + "`" + ` — true when it has at least one dependency and any of them is true.
- ` + "`" + `Not` + "`" + ` — true when no dependency is true.
- ` + "`" + `ExactlyOne` + "`" + ` — true when exactly one dependency is true.

## Rules

1. ` + "`" + `depends` + "`" + ` means "from needs to": ` + "`" + `link a -> b` + "`" + ` makes ` + "`" + `a` + "`" + ` wait on ` + "`" + `b` + "`" + `.
2. Node and plan ids are caller-chosen strings; creating a duplicate id fails
   the batch.
3. Due dates are unix timestamps in seconds. A node's effective due date is
   the earliest of its own and those of everything that depends on it.
4. Check the per-operation ` + "`" + `results` + "`" + ` array in the response: on failure exactly
   one entry has ` + "`" + `success: false` + "`" + ` with the reason.
`
