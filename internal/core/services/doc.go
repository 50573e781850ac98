// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The research pipeline lives here: hybrid search, reranking, web search,
// routing, the orchestrator state machine and answer synthesis.
package services
