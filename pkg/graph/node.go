package graph

import (
	"github.com/matzehuels/stackforge/pkg/recipe"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/requirement"
	"github.com/matzehuels/stackforge/pkg/values"
)

// State is the evaluation state of a node.
type State int

const (
	Pending State = iota
	Evaluating
	Expanded
	Finalized
	Error
)

var stateNames = [...]string{"pending", "evaluating", "expanded", "finalized", "error"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// ConsumerID is the node ID of a command-line consumer root.
const ConsumerID = "consumer"

// Node is one evaluation unit: a recipe reference in a context with a frozen
// configuration.
type Node struct {
	ID       string
	Ref      ref.Reference // with recipe revision; zero for a consumer root
	Context  requirement.Context
	Options  *values.Values
	Settings *values.Values
	// Requirements is the aggregated requirement set. It is consistent with
	// the node's outgoing edges once the node is expanded.
	Requirements *requirement.Set
	Recipe       recipe.Recipe
	State        State

	// Path is the chain of requirers from the root that first reached the
	// node, root first, excluding the node itself.
	Path []string
	// Visible is false when every path to the node crosses a private edge.
	Visible bool
	// Virtual marks a consumer root built from command-line requirements.
	Virtual bool
	// Skip is set by binary analysis for nodes whose binary is never needed.
	Skip bool
	// Conflicts lists the option values decided by order alone between
	// different requirers.
	Conflicts []values.Conflict

	parent     *Node // first requirer
	scope      string
	key        string
	depth      int
	downstream []values.Assignment
	overrides  []override
	dropped    bool
}

type override struct {
	req   requirement.Requirement
	by    string
	depth int
}

// Name returns the package name, or ConsumerID for a consumer root.
func (n *Node) Name() string {
	if n.Virtual {
		return ConsumerID
	}
	return n.Ref.Name
}

// IsRoot reports whether n is the root of its graph.
func (n *Node) IsRoot() bool { return n.depth == 0 }

// Label returns the reference without revision, or ConsumerID.
func (n *Node) Label() string {
	if n.Virtual {
		return ConsumerID
	}
	return n.Ref.String()
}

func (n *Node) String() string {
	if n.Context == requirement.Build {
		return n.Label() + " (build)"
	}
	return n.Label()
}

// chain returns the requirer chain including n.
func (n *Node) chain() []string {
	return append(append([]string(nil), n.Path...), n.Label())
}

// Edge is a dependency edge with the requirement that produced it.
type Edge struct {
	From        *Node
	To          *Node
	Requirement requirement.Requirement
}
