package domain

import "fmt"

// RelationshipHostedOn is the relationship type that scaling policies are
// inherited along.
const RelationshipHostedOn = "coxswain.relationships.HostedOn"

// RelationshipTemplate links a node template to a target node.
type RelationshipTemplate struct {
	Type   string
	Target string
}

// NodeTemplate is one typed node of a topology graph.
type NodeTemplate struct {
	Type          string
	Properties    map[string]string
	Relationships map[string]RelationshipTemplate
}

// ScalingPolicy is the desired instance count range for a node template.
type ScalingPolicy struct {
	MinInstances     int
	MaxInstances     int
	InitialInstances int
}

// Topology is a graph of node templates and relationships describing a
// deployable application structure. A runtime topology is a copy of a
// template persisted under its deployment's id.
type Topology struct {
	ID              string
	NodeTemplates   map[string]NodeTemplate
	ScalingPolicies map[string]*ScalingPolicy
}

// Copy returns a deep copy of the topology with the given id, used to
// persist the runtime copy of a template without mutating the template.
func (t *Topology) Copy(id string) *Topology {
	c := &Topology{
		ID:              id,
		NodeTemplates:   make(map[string]NodeTemplate, len(t.NodeTemplates)),
		ScalingPolicies: make(map[string]*ScalingPolicy, len(t.ScalingPolicies)),
	}
	for name, node := range t.NodeTemplates {
		copied := NodeTemplate{
			Type:          node.Type,
			Properties:    copyStringMap(node.Properties),
			Relationships: make(map[string]RelationshipTemplate, len(node.Relationships)),
		}
		for relName, rel := range node.Relationships {
			copied.Relationships[relName] = rel
		}
		c.NodeTemplates[name] = copied
	}
	for name, policy := range t.ScalingPolicies {
		p := *policy
		c.ScalingPolicies[name] = &p
	}
	return c
}

// ScalingPolicyOwner resolves the node template whose scaling policy governs
// nodeTemplateID. A node without an explicit policy inherits from the
// nearest ancestor reachable over a hosted-on relationship. Returns the
// owning node id and its policy, or an error if the node does not exist, no
// policy is found along the chain, or the hosted-on chain is cyclic.
func (t *Topology) ScalingPolicyOwner(nodeTemplateID string) (string, *ScalingPolicy, error) {
	visited := make(map[string]bool)
	current := nodeTemplateID
	for {
		if visited[current] {
			return "", nil, fmt.Errorf("cyclic hosted-on chain detected at node %q in topology %q", current, t.ID)
		}
		visited[current] = true

		node, ok := t.NodeTemplates[current]
		if !ok {
			return "", nil, fmt.Errorf("node template %q not found in topology %q", current, t.ID)
		}
		if policy, ok := t.ScalingPolicies[current]; ok && policy != nil {
			return current, policy, nil
		}

		host := ""
		for _, rel := range node.Relationships {
			if rel.Type == RelationshipHostedOn {
				host = rel.Target
				break
			}
		}
		if host == "" {
			return "", nil, fmt.Errorf("no scaling policy found for node %q or its hosts in topology %q", nodeTemplateID, t.ID)
		}
		current = host
	}
}

// InitialInstances returns the effective initial instance count for a node,
// falling back to 1 when neither the node nor its hosts carry a policy.
func (t *Topology) InitialInstances(nodeTemplateID string) int {
	_, policy, err := t.ScalingPolicyOwner(nodeTemplateID)
	if err != nil {
		return 1
	}
	return policy.InitialInstances
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
