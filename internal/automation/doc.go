// Package automation provides the rule store for tiond.
//
// A Scenario pairs a trigger with a single device action:
//
//	trigger_type  trigger_params
//	time          {"start": "22:00", "end": "06:00"}
//	sensor        {"device_id": "...", "sensor": "in_temp", "threshold": 18, "comparison": "lt"}
//
//	action_params {"device_id": "...", "command": "set_speed", "value": 4}
//
// Parameters are checked against the JSON Schemas in schemas/ when a
// scenario is created or updated. Evaluation (in the operator package)
// still fails closed on anything it cannot interpret.
//
// Each run is recorded twice: the counters on the scenario row
// (last_executed, execution_count, last_status) and a row in
// scenario_executions.
package automation
