package alerts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exportCSV = `Alert ID,Policy Name,Alert Status,Policy Type,Resource Name
A1,P1,open,config,repo-a
A2,"Policy, with comma",open,config,repo-b
A3,P1,resolved,config,repo-c
`

func TestParseAlerts(t *testing.T) {
	got, err := ParseAlerts(strings.NewReader(exportCSV))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "A1", got[0].AlertID)
	assert.Equal(t, "P1", got[0].PolicyName)
	assert.Equal(t, "open", got[0].AlertStatus)
	assert.Equal(t, "config", got[0].PolicyType)
	assert.Equal(t, "repo-a", got[0].Fields["Resource Name"])

	assert.Equal(t, "Policy, with comma", got[1].PolicyName)
	assert.Equal(t, "resolved", got[2].AlertStatus)
}

func TestParseAlerts_ColumnOrderAndBOM(t *testing.T) {
	data := "\ufeffPolicy Type,Alert Status,Policy Name,Alert ID\nconfig,open,P7,A7\n"

	got, err := ParseAlertBytes([]byte(data))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, AlertRecord{
		AlertID:     "A7",
		PolicyName:  "P7",
		AlertStatus: "open",
		PolicyType:  "config",
		Fields: map[string]string{
			"Policy Type":  "config",
			"Alert Status": "open",
			"Policy Name":  "P7",
			"Alert ID":     "A7",
		},
	}, got[0])
}

func TestParseAlerts_HeaderOnly(t *testing.T) {
	got, err := ParseAlerts(strings.NewReader("Alert ID,Policy Name,Alert Status,Policy Type\n"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseAlerts_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "missing column", data: "Alert ID,Policy Name,Alert Status\nA1,P1,open\n"},
		{name: "ragged row", data: "Alert ID,Policy Name,Alert Status,Policy Type\nA1,P1,open\n"},
		{name: "bare quote", data: "Alert ID,Policy Name,Alert Status,Policy Type\nA1,P\"1,open,config\n"},
		{name: "unterminated quote", data: "Alert ID,Policy Name,Alert Status,Policy Type\nA1,\"P1,open,config\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAlerts(strings.NewReader(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestStatusFromRemote(t *testing.T) {
	assert.Equal(t, JobReady, StatusFromRemote("READY_TO_DOWNLOAD"))
	assert.Equal(t, JobPending, StatusFromRemote("PENDING"))
	assert.Equal(t, JobPending, StatusFromRemote("IN_PROGRESS"))
	assert.Equal(t, JobPending, StatusFromRemote(""))
}

func TestCredentialString(t *testing.T) {
	assert.Equal(t, "<none>", Credential{}.String())
	assert.Equal(t, "****", Credential{Token: "short"}.String())
	assert.Equal(t, "eyJh****", Credential{Token: "eyJhbGciOiJIUzI1NiJ9.secret"}.String())
	assert.NotContains(t, Credential{Token: "eyJhbGciOiJIUzI1NiJ9.secret"}.String(), "secret")
}
