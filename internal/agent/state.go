// Package agent implements the query-answering pipeline: a fixed state
// machine that classifies each question, optionally searches the university
// website, and generates (or refuses) an answer.
package agent

import "github.com/irfanhaider/mulbot/internal/conversation"

// Route is the classification assigned to a query by the ROUTE state.
type Route string

const (
	// RouteMULRelated means the query needs fresh information from the
	// university website.
	RouteMULRelated Route = "mul_related"
	// RouteConversational means the query is answerable from chat history
	// alone (greetings, follow-ups about the conversation itself).
	RouteConversational Route = "conversational"
	// RouteOffTopic means the query is outside the assistant's remit and
	// gets the guardrail refusal. Unrecognized classifier output also
	// lands here.
	RouteOffTopic Route = "off_topic"
)

// Node names the pipeline states. They appear verbatim in status events.
type Node string

const (
	NodeRoute     Node = "route_query"
	NodeSearch    Node = "web_search"
	NodeGenerate  Node = "generate"
	NodeGuardrail Node = "guardrail"
	nodeEnd       Node = ""
)

// State is the transient record threaded through one pipeline run. It is
// created per request and discarded once the turn is committed.
type State struct {
	ThreadID      string
	Turns         []conversation.Turn // history snapshot including the current user turn
	Query         string
	Route         Route
	SearchResults string
	Response      string
}

// next returns the state that follows current. Only the ROUTE state branches;
// everything else is a fixed edge.
func next(current Node, route Route) Node {
	switch current {
	case NodeRoute:
		switch route {
		case RouteMULRelated:
			return NodeSearch
		case RouteConversational:
			return NodeGenerate
		default:
			return NodeGuardrail
		}
	case NodeSearch:
		return NodeGenerate
	case NodeGenerate, NodeGuardrail:
		return nodeEnd
	default:
		return nodeEnd
	}
}
