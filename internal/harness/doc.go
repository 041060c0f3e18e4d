// Package harness runs process scenarios and compares their traces against
// golden files.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: order_approved
//	description: "What this scenario validates"
//	definition: ../definitions/order.yaml
//	process: Order
//	steps:
//	  - do: complete
//	    task: Review
//	    choice: "Yes"
//	    expect:
//	      waiting: [Paid]
//	      state: "Flow_Ship_Paid:W"
//	  - do: save_restore
//	  - do: message
//	    message: paid
//	    payload: { amount: 10 }
//	    expect:
//	      matched: 1
//
// The definition path is resolved relative to the scenario file.
//
// # Step Kinds
//
//   - engine_steps: runs automatic tasks to quiescence
//   - complete: completes a READY task, optionally setting a choice and attributes first
//   - message: delivers a message to WAITING tasks, then runs engine steps
//   - save_restore: persists state, restores it into a fresh workflow and checks
//     that the restored workflow serializes identically
//
// # Deterministic Testing
//
// Each scenario runs against its own in-memory SQLite store with a
// counter for snapshot sequence numbers. The trace records the serialized
// state after every step, so equal runs produce byte-identical golden
// output.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/order_approved.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
