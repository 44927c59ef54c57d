// Package harness runs scenario tests against real repositories.
//
// A scenario executes commands and queries against one of the sample models,
// then restarts the repository from its journal and checks that replay
// rebuilds exactly the same model.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	model: blog               # blog | counter
//	driver: file              # file (default) | sqlite
//	setup:
//	  - execute: add-post
//	    arg: { id: "post#1", subject: "Lorem" }
//	flow:
//	  - execute: add-post
//	    arg: { id: "post#2", subject: "Ipsum" }
//	    expect:
//	      result: { id: "post#2" }
//	  - query: posts
//	    expect:
//	      result: [{ id: "post#1" }, { id: "post#2" }]
//	assertions:
//	  - type: journal_contains
//	    command: add-post
//	    arg: { id: "post#2" }
//	  - type: final_state
//	    expect: { posts: { "post#1": { subject: "Lorem" } } }
//
// # Assertion Types
//
//   - journal_contains: a journaled record matches command and arg (subset)
//   - journal_order: commands were journaled in the given order
//   - journal_count: command was journaled exactly count times
//   - final_state: the model after the flow matches expect (subset)
//
// # Deterministic Testing
//
// Records are stamped by testutil.DeterministicClock and identified by
// testutil.SequentialIDs, so the same scenario always writes the same
// journal and produces the same golden snapshot.
package harness
