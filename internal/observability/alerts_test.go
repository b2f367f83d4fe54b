package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

func TestDojoAlertRules(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "dojo.yml"))
	require.NoError(t, err)

	var rules alertSpec
	require.NoError(t, yaml.Unmarshal(data, &rules))

	var group *alertGroup
	for i := range rules.Groups {
		if rules.Groups[i].Name == "dojo" {
			group = &rules.Groups[i]
			break
		}
	}
	require.NotNil(t, group, "dojo alert group missing")

	expected := map[string]struct {
		severity string
		runbook  string
	}{
		"RPCErrorRate": {severity: "critical", runbook: "docs/runbook-dojo.md#rpc-error-rate"},
		"HighLatency":  {severity: "warning", runbook: "docs/runbook-dojo.md#high-latency"},
		"JobFailures":  {severity: "warning", runbook: "docs/runbook-dojo.md#job-failures"},
	}
	require.Len(t, group.Rules, len(expected))

	for _, rule := range group.Rules {
		want, ok := expected[rule.Alert]
		require.True(t, ok, "unexpected rule %q", rule.Alert)
		require.Equal(t, want.severity, rule.Labels["severity"], rule.Alert)
		require.Equal(t, want.runbook, rule.Annotations["runbook"], rule.Alert)
		require.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		require.NotEmpty(t, rule.Annotations["description"], rule.Alert)
		require.NotEmpty(t, rule.Expr, rule.Alert)
		require.NotEmpty(t, rule.For, rule.Alert)
	}
}
