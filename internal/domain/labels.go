package domain

// GroupSpec describes a family of mutually exclusive "scoped" labels.
// Labels is ordered by increasing rank: when an issue carries more than
// one member, the last-positioned one wins. Default, when non-empty,
// is applied to issues that carry no member at all.
type GroupSpec struct {
	Name          string   `json:"name"`
	Labels        []string `json:"labels"`
	Default       string   `json:"default,omitempty"`
	IncludeClosed bool     `json:"include_closed,omitempty"`
}

// Rank returns the positional rank of a label within the group, or -1
// if the label is not a member. When the configuration lists a label
// twice, the first occurrence is authoritative.
func (g GroupSpec) Rank(label string) int {
	for i, l := range g.Labels {
		if l == label {
			return i
		}
	}
	return -1
}

// CategorySpec describes a derived label that mirrors the presence of
// any of its child labels. SkipClosed leaves closed issues untouched,
// mirroring GroupSpec.IncludeClosed; it defaults to false because the
// category rule historically applied to closed issues as well.
type CategorySpec struct {
	Category   string   `json:"category"`
	Children   []string `json:"children"`
	SkipClosed bool     `json:"skip_closed,omitempty"`
}
