package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qa-go/qaf/logger"
)

func TestZerologAdapter_EmitsStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewZerologAdapter("reliability", "ci", logger.WithWriter(&buf))

	log.Log(logger.WarnLevel, "schema apply retried", logger.String("database", "qa_fixtures"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "reliability", rec["component"])
	assert.Equal(t, "ci", rec["env"])
	assert.Equal(t, "warn", rec["level"])
	assert.Equal(t, "qa_fixtures", rec["database"])
	assert.Equal(t, "schema apply retried", rec["message"])
}

func TestZerologAdapter_CtxInjectsTestCaseID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewZerologAdapter("reliability", "ci", logger.WithWriter(&buf))

	ctx := logger.SetTestCaseID(context.Background(), "T1")
	log.LogAttrs(ctx, logger.InfoLevel, "fixture allocated")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "T1", rec["test_case_id"])
}

func TestZerologAdapter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewZerologAdapter("reliability", "ci",
		logger.WithWriter(&buf), logger.WithLevel(logger.WarnLevel))

	log.Debug("dropped")
	log.Info("dropped too")
	assert.Zero(t, buf.Len())

	log.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestSlogAdapter_With(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewSlogAdapter("reliability", "local", logger.WithWriter(&buf))

	log.With("surface", "web").Info("recovery attempted")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "web", rec["surface"])
}

func TestInitLogger_EngineSelection(t *testing.T) {
	for _, engine := range []logger.Engine{
		logger.ZerologEngine, logger.SlogEngine, logger.ZapEngine, logger.LogrusEngine,
	} {
		var buf bytes.Buffer
		log, err := logger.InitLogger(engine, "reliability", "test", logger.WithWriter(&buf))
		require.NoError(t, err, "engine %s", engine)
		require.NotNil(t, log)
		log.Info("hello")
		assert.NotZero(t, buf.Len(), "engine %s wrote nothing", engine)
	}
}

func TestGetTestCaseID_Absent(t *testing.T) {
	assert.Empty(t, logger.GetTestCaseID(context.Background()))
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", logger.DebugLevel.String())
	assert.Equal(t, "INFO", logger.InfoLevel.String())
	assert.Equal(t, "WARN", logger.WarnLevel.String())
	assert.Equal(t, "ERROR", logger.ErrorLevel.String())
}
