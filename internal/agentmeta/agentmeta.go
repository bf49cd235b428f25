// Package agentmeta parses the schemaless Agent.Metadata map into the
// typed sub-views recognized by the strict-session policy: "sandbox" and
// "eigencompute".
package agentmeta

import (
	"fmt"
	"net/url"
	"strings"
)

// Sandbox describes a declared execution sandbox profile.
type Sandbox struct {
	Runtime string
	Version string
	CPU     string
	Memory  string
}

// EigenCompute describes a declared EigenCompute/TEE identity.
type EigenCompute struct {
	AppID         string
	Environment   string
	ImageDigest   string
	SignerAddress string
}

// ParseSandbox extracts metadata["sandbox"], returning ok=false if absent
// or malformed.
func ParseSandbox(meta map[string]any) (Sandbox, bool) {
	raw, ok := meta["sandbox"].(map[string]any)
	if !ok {
		return Sandbox{}, false
	}
	return Sandbox{
		Runtime: str(raw["runtime"]),
		Version: str(raw["version"]),
		CPU:     str(raw["cpu"]),
		Memory:  str(raw["memory"]),
	}, true
}

// SandboxesMatch reports whether two sandboxes agree on all four fields.
func SandboxesMatch(a, b Sandbox) bool {
	return a.Runtime == b.Runtime && a.Version == b.Version && a.CPU == b.CPU && a.Memory == b.Memory
}

// ParseEigenCompute extracts metadata["eigencompute"].
func ParseEigenCompute(meta map[string]any) (EigenCompute, bool) {
	raw, ok := meta["eigencompute"].(map[string]any)
	if !ok {
		return EigenCompute{}, false
	}
	ec := EigenCompute{
		AppID:         str(raw["appId"]),
		Environment:   str(raw["environment"]),
		ImageDigest:   str(raw["imageDigest"]),
		SignerAddress: str(raw["signerAddress"]),
	}
	if ec.AppID == "" {
		return EigenCompute{}, false
	}
	return ec, true
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// ParseEndpoint validates that endpoint is a well-formed http(s) URL, and
// when requireHTTPSForNonLoopback is set, requires https for any host that
// is not a loopback address.
func ParseEndpoint(endpoint string, requireHTTPSForNonLoopback bool) (*url.URL, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("agentmeta: invalid endpoint url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("agentmeta: endpoint scheme must be http or https, got %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("agentmeta: endpoint missing host")
	}
	if requireHTTPSForNonLoopback && u.Scheme == "http" && !isLoopbackHost(u.Hostname()) {
		return nil, fmt.Errorf("agentmeta: non-loopback endpoint requires https")
	}
	return u, nil
}

func isLoopbackHost(host string) bool {
	h := strings.ToLower(host)
	return h == "localhost" || h == "127.0.0.1" || h == "::1"
}
