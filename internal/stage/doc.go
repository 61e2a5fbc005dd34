// Package stage defines the contract every flow node implements.
//
// A node declares, ahead of execution, the state keys it requires, the keys
// it may optionally read, and the keys it produces. Flow composition checks
// those declarations; the executor checks that a node's output matches what
// it declared. Nodes read state through Input and write through Output; they
// never see the shared state map directly.
package stage
