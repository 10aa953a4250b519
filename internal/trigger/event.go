// Package trigger models forge push events and the branch gate that decides
// whether an event starts a pipeline run.
package trigger

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PushEvent is the normalized form of a forge push notification.
type PushEvent struct {
	Ref      string `json:"ref"`    // full ref, e.g. refs/heads/main
	Branch   string `json:"branch"` // short branch name derived from Ref
	Commit   string `json:"commit"` // head commit SHA ("after" in forge payloads)
	RepoURL  string `json:"repo_url"`
	RepoName string `json:"repo_name"`
	Deleted  bool   `json:"deleted"` // branch deletion pushes carry a zero "after"
}

const zeroSHA = "0000000000000000000000000000000000000000"

// pushPayload mirrors the subset of GitHub/Gitea push payloads we consume.
type pushPayload struct {
	Ref        string `json:"ref"`
	After      string `json:"after"`
	Deleted    bool   `json:"deleted"`
	Repository struct {
		Name     string `json:"name"`
		FullName string `json:"full_name"`
		CloneURL string `json:"clone_url"`
		HTMLURL  string `json:"html_url"`
	} `json:"repository"`
}

// ParsePush decodes a forge push payload (GitHub/Gitea JSON shape) into a PushEvent.
// Only branch refs produce events; tag pushes return an error.
func ParsePush(body []byte) (*PushEvent, error) {
	var p pushPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to decode push payload: %w", err)
	}
	if p.Ref == "" {
		return nil, fmt.Errorf("push payload has no ref")
	}

	branch, ok := BranchFromRef(p.Ref)
	if !ok {
		return nil, fmt.Errorf("ref %q is not a branch ref", p.Ref)
	}

	ev := &PushEvent{
		Ref:      p.Ref,
		Branch:   branch,
		Commit:   p.After,
		RepoURL:  p.Repository.CloneURL,
		RepoName: p.Repository.Name,
		Deleted:  p.Deleted || p.After == zeroSHA,
	}
	if ev.Commit == zeroSHA {
		ev.Commit = ""
	}
	if ev.RepoName == "" && p.Repository.FullName != "" {
		if i := strings.LastIndex(p.Repository.FullName, "/"); i >= 0 {
			ev.RepoName = p.Repository.FullName[i+1:]
		} else {
			ev.RepoName = p.Repository.FullName
		}
	}
	return ev, nil
}

// BranchFromRef extracts the short branch name from a full ref.
// Returns false for non-branch refs (tags, notes).
func BranchFromRef(ref string) (string, bool) {
	const prefix = "refs/heads/"
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	branch := strings.TrimPrefix(ref, prefix)
	if branch == "" {
		return "", false
	}
	return branch, true
}
