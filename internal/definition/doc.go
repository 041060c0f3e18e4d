// Package definition loads process definitions into workflow graphs.
//
// A definition file lists one or more processes in YAML or CUE:
//
//	processes:
//	  - name: Approval
//	    start: Start
//	    tasks:
//	      - {name: Start, kind: start}
//	      - {name: Review, kind: manual}
//	      - {name: Decide, kind: exclusive, default: Flow_Rejected}
//	    flows:
//	      - {id: Flow_1, from: Start, to: Review}
//	      - {id: Flow_Approved, name: Yes, from: Decide, to: Done, condition: 'choice == "Yes"'}
//
// Processes are built in two phases so a call activity can reference any
// process of the same file regardless of order. Names and ids are NFC
// normalized, so visually identical identifiers compare equal.
package definition
