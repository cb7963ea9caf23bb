package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCitationQCFlagLegitimate(t *testing.T) {
	reason, suspect := CitationQCFlag(CitationCheck{
		ChunkFound:      true,
		DocVersion:      3,
		SnapshotVersion: 3,
		SnapshotFound:   true,
	})
	assert.False(t, suspect)
	assert.Empty(t, reason)
}

func TestCitationQCFlagMissingChunk(t *testing.T) {
	reason, suspect := CitationQCFlag(CitationCheck{ChunkFound: false})
	assert.True(t, suspect)
	assert.Equal(t, "chunk_missing", reason)
}

func TestCitationQCFlagVersionMismatch(t *testing.T) {
	reason, suspect := CitationQCFlag(CitationCheck{
		ChunkFound:      true,
		DocVersion:      4,
		SnapshotVersion: 3,
		SnapshotFound:   true,
	})
	assert.True(t, suspect)
	assert.Equal(t, "version_mismatch", reason)
}

func TestCitationQCFlagCollectionNotFrozen(t *testing.T) {
	reason, suspect := CitationQCFlag(CitationCheck{
		ChunkFound:    true,
		DocVersion:    1,
		SnapshotFound: false,
	})
	assert.True(t, suspect)
	assert.Equal(t, "collection_not_in_snapshot", reason)
}
