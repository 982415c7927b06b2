package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type GateConfig interface {
	GetGatePolicyFile() string
	GetGatePolicy() (GatePolicy, error)
}

// GatePolicy is the on-disk shape of the routing gate's path lists.
type GatePolicy struct {
	LoginRoute      string   `yaml:"login_route"`
	PublicPaths     []string `yaml:"public_paths"`
	APIPrefix       string   `yaml:"api_prefix"`
	AssetPrefixes   []string `yaml:"asset_prefixes"`
	AssetExtensions []string `yaml:"asset_extensions"`
	BypassPaths     []string `yaml:"bypass_paths"`
}

// DefaultGatePolicy is used when no policy file is configured. Fields left empty
// in a policy file are filled from it.
func DefaultGatePolicy() GatePolicy {
	return GatePolicy{
		LoginRoute:  "/login",
		PublicPaths: []string{"/login", "/privacy", "/terms"},
		APIPrefix:   "/api/",
		AssetPrefixes: []string{
			"/_next/static/",
			"/_next/image",
			"/static/",
		},
		AssetExtensions: []string{
			".css", ".js", ".map", ".ico", ".png", ".jpg", ".jpeg", ".gif", ".svg",
			".webp", ".woff", ".woff2", ".ttf", ".txt", ".xml", ".webmanifest",
		},
		BypassPaths: []string{"/healthz", "/metrics"},
	}
}

type Gate struct {
	policyFile string
}

var _ GateConfig = Gate{}

func (g Gate) GetGatePolicyFile() string {
	if g.policyFile != "" {
		return g.policyFile
	}
	return GetEnv("GATE_POLICY_FILE", "")
}

func (g Gate) GetGatePolicy() (GatePolicy, error) {
	path := g.GetGatePolicyFile()
	if path == "" {
		return DefaultGatePolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return GatePolicy{}, fmt.Errorf("[config GetGatePolicy] read %s: %w", path, err)
	}
	return ParseGatePolicy(data)
}

// ParseGatePolicy decodes a YAML policy document over the defaults.
func ParseGatePolicy(data []byte) (GatePolicy, error) {
	var p GatePolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return GatePolicy{}, fmt.Errorf("[config ParseGatePolicy] decode: %w", err)
	}

	def := DefaultGatePolicy()
	if p.LoginRoute == "" {
		p.LoginRoute = def.LoginRoute
	}
	if p.PublicPaths == nil {
		p.PublicPaths = def.PublicPaths
	}
	if p.APIPrefix == "" {
		p.APIPrefix = def.APIPrefix
	}
	if p.AssetPrefixes == nil {
		p.AssetPrefixes = def.AssetPrefixes
	}
	if p.AssetExtensions == nil {
		p.AssetExtensions = def.AssetExtensions
	}
	if p.BypassPaths == nil {
		p.BypassPaths = def.BypassPaths
	}
	if p.LoginRoute[0] != '/' {
		return GatePolicy{}, fmt.Errorf("[config ParseGatePolicy] login_route must start with /: %q", p.LoginRoute)
	}
	return p, nil
}
