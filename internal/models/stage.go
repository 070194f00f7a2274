package models

import "fmt"

// Stage identifies one phase of the organize pipeline.
type Stage int

const (
	StageScanning Stage = iota
	StageGrouping
	StageParsing
	StageMetadataRetrieval
	StageGroupMetadataRetrieval
	StageFileMoving
)

// AllStages lists every pipeline stage in declaration order.
var AllStages = []Stage{
	StageScanning,
	StageGrouping,
	StageParsing,
	StageMetadataRetrieval,
	StageGroupMetadataRetrieval,
	StageFileMoving,
}

var stageNames = map[Stage]string{
	StageScanning:               "scanning",
	StageGrouping:               "grouping",
	StageParsing:                "parsing",
	StageMetadataRetrieval:      "metadata_retrieval",
	StageGroupMetadataRetrieval: "group_metadata_retrieval",
	StageFileMoving:             "file_moving",
}

// String returns the stage's identifier, e.g. "metadata_retrieval".
func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Valid reports whether s is a declared stage.
func (s Stage) Valid() bool {
	_, ok := stageNames[s]
	return ok
}

// ParseStage parses a stage identifier string.
func ParseStage(s string) (Stage, error) {
	for stage, name := range stageNames {
		if name == s {
			return stage, nil
		}
	}
	return 0, fmt.Errorf("unknown stage: %q", s)
}
