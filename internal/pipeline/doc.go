// Package pipeline assembles the six-stage training job graph.
//
// The topology is fixed: the package owns a static wiring table that connects
// each stage's declared outputs to the next stage's declared inputs. Build
// validates every binding against the loaded step definitions, so a renamed
// port in a definition file is reported before anything is sent to the
// remote service.
//
// Besides the data bindings, a Job exposes two derived views:
//
//   - Chain returns the five primary output-to-input edges, one per
//     consecutive stage pair, in stage order.
//   - Order returns the step execution order computed from the step graph.
package pipeline
