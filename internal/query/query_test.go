package query

import (
	"testing"

	"github.com/chronocat/chronocat/pkg/models"
)

// TestMergeGroupsIntersectsSequencesUnionsTopics mirrors scenario S3:
// a sequence only survives if every group's result names it, and the
// union of its topics across groups is returned.
func TestMergeGroupsIntersectsSequencesUnionsTopics(t *testing.T) {
	seqA := models.Sequence{ID: 1, LocatorName: "/A"}
	seqB := models.Sequence{ID: 2, LocatorName: "/B"}

	topicA1 := models.Topic{ID: 10, SequenceID: 1, LocatorName: "/A/image"}
	topicA2 := models.Topic{ID: 11, SequenceID: 1, LocatorName: "/A/imu"}
	topicB1 := models.Topic{ID: 20, SequenceID: 2, LocatorName: "/B/image"}

	group1 := models.SequenceTopicGroups{
		{Sequence: seqA, Topics: []models.Topic{topicA1}},
		{Sequence: seqB, Topics: []models.Topic{topicB1}},
	}
	group2 := models.SequenceTopicGroups{
		{Sequence: seqA, Topics: []models.Topic{topicA2}},
		// seqB absent from group2: should not survive the intersection.
	}

	merged := mergeGroups([]models.SequenceTopicGroups{group1, group2})

	if len(merged) != 1 {
		t.Fatalf("expected exactly 1 surviving sequence, got %d: %+v", len(merged), merged)
	}
	if merged[0].Sequence.ID != 1 {
		t.Errorf("expected sequence A (id=1) to survive, got id=%d", merged[0].Sequence.ID)
	}
	if len(merged[0].Topics) != 2 {
		t.Errorf("expected the union of topicA1 and topicA2, got %+v", merged[0].Topics)
	}
}

func TestMergeGroupsEmptyInputYieldsNil(t *testing.T) {
	if got := mergeGroups(nil); got != nil {
		t.Errorf("expected nil for no groups, got %+v", got)
	}
}

func TestMergeGroupsSingleGroupPassesThrough(t *testing.T) {
	seqA := models.Sequence{ID: 1}
	topicA1 := models.Topic{ID: 10, SequenceID: 1}
	group := models.SequenceTopicGroups{{Sequence: seqA, Topics: []models.Topic{topicA1}}}

	merged := mergeGroups([]models.SequenceTopicGroups{group})
	if len(merged) != 1 || merged[0].Sequence.ID != 1 {
		t.Errorf("single group should pass through unchanged, got %+v", merged)
	}
}
