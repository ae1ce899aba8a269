package codehost

import (
	"fmt"
	"regexp"
)

var (
	httpsRepoPattern = regexp.MustCompile(`^https://github\.com/([A-Za-z0-9_.\-]+)/([A-Za-z0-9_.\-]+?)/?$`)
	sshRepoPattern   = regexp.MustCompile(`^git@github\.com:([A-Za-z0-9_.\-]+)/([A-Za-z0-9_.\-]+)\.git$`)
)

// ParseRepoURL extracts owner/name from the two URL shapes spec.md §6
// accepts. Any other shape is a validation error.
func ParseRepoURL(repoURL string) (owner, name string, err error) {
	if m := httpsRepoPattern.FindStringSubmatch(repoURL); m != nil {
		return m[1], m[2], nil
	}
	if m := sshRepoPattern.FindStringSubmatch(repoURL); m != nil {
		return m[1], m[2], nil
	}
	return "", "", fmt.Errorf("codehost: unrecognized repository url %q", repoURL)
}
