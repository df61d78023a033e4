package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_LinkMapRoundTrip(t *testing.T) {
	p := &Process{}

	links, err := p.LinkMap()
	require.NoError(t, err)
	assert.Empty(t, links, "empty column yields empty map")

	links["ABC"] = LinkRecord{
		Status:      LinkActive,
		AccessType:  AccessIntegral,
		LastChecked: "2024-08-05 10:00:00",
		History: []LinkCheck{
			{CheckedAt: "2024-08-05 10:00:00", Status: LinkActive, AccessType: AccessIntegral},
		},
	}
	require.NoError(t, p.SetLinkMap(links))

	got, err := p.LinkMap()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, AccessIntegral, got["ABC"].AccessType)
	assert.Len(t, got["ABC"].History, 1)
}

func TestProcess_DocumentMapPreservesStoragePath(t *testing.T) {
	p := &Process{}
	require.NoError(t, p.SetDocumentMap(map[string]DocumentRecord{
		"10000001": {
			Type:        "Order",
			Date:        "05/08/2024",
			Status:      DocumentDownloaded,
			Signer:      "Dr. Silva",
			StoragePath: "t1/12345.001234/2024-56/10000001.pdf",
		},
	}))

	got, err := p.DocumentMap()
	require.NoError(t, err)
	assert.Equal(t, "t1/12345.001234/2024-56/10000001.pdf", got["10000001"].StoragePath)
}

func TestProcess_MalformedColumnsError(t *testing.T) {
	p := &Process{Links: "{not json", Documents: "[broken"}

	_, err := p.LinkMap()
	assert.Error(t, err)
	_, err = p.DocumentMap()
	assert.Error(t, err)
}

func TestProcess_AuthorityLegacyAlias(t *testing.T) {
	// The canonical key wins
	var canonical Process
	require.NoError(t, json.Unmarshal(
		[]byte(`{"process_number":"12345.001234/2024-56","authority":"Dr. Silva","Autoridade":"Ignored"}`),
		&canonical))
	assert.Equal(t, "Dr. Silva", canonical.Authority)

	// The legacy capitalization is accepted when the canonical key is absent
	var legacy Process
	require.NoError(t, json.Unmarshal(
		[]byte(`{"process_number":"12345.001234/2024-56","Autoridade":"Dra. Souza"}`),
		&legacy))
	assert.Equal(t, "Dra. Souza", legacy.Authority)
}

func TestExtractionSummary_ToJSON(t *testing.T) {
	summary := &ExtractionSummary{Discovered: 3, NewProcesses: 1, NewDocuments: 2}
	data, err := summary.ToJSON()
	require.NoError(t, err)

	got, err := SummaryFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, summary, got)
}

func TestDownloadTask_ResultsRoundTrip(t *testing.T) {
	task := &DownloadTask{}
	require.NoError(t, task.SetResults(map[string]DownloadResult{
		"10000001": {Uploaded: true},
		"10000002": {Uploaded: false, Reason: "object store upload failed"},
	}))

	got, err := task.ResultMap()
	require.NoError(t, err)
	assert.True(t, got["10000001"].Uploaded)
	assert.Equal(t, "object store upload failed", got["10000002"].Reason)
}
