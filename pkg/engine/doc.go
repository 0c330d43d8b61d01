// Package engine turns an effective lab topology into an ordered plan of
// inventory resource intents and executes it against the Nautobot client.
//
// A plan is a DAG: every intent names the intents whose returned identifiers
// its payload embeds. Execution is sequential in plan order, which Validate
// proves is a topological order, so every identifier is bound before a
// dependent call is issued. The executor never retries and never rolls back;
// retry lives in the API client, and a failed run is rerun whole.
package engine
