package webhook

import "github.com/tidwall/gjson"

// ExtractIssueIID pulls the issue iid out of a GitLab webhook payload.
// Issue events carry it in object_attributes, note events under the
// issue they comment on. Any other event kind is not ours to handle.
func ExtractIssueIID(payload []byte) (int, bool) {
	switch gjson.GetBytes(payload, "object_kind").String() {
	case "issue":
		if iid := gjson.GetBytes(payload, "object_attributes.iid"); iid.Exists() {
			return int(iid.Int()), true
		}
	case "note":
		if iid := gjson.GetBytes(payload, "issue.iid"); iid.Exists() {
			return int(iid.Int()), true
		}
	}
	return 0, false
}
