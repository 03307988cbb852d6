package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"alcyxob/workout-timer/internal/config"
	"alcyxob/workout-timer/internal/domain"
	"alcyxob/workout-timer/internal/kv"
	"alcyxob/workout-timer/internal/repository/memory"
	"alcyxob/workout-timer/internal/service"
	"alcyxob/workout-timer/internal/timer"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestWiring_LogLinesNameOneComponent(t *testing.T) {
	var out bytes.Buffer
	logger := zerolog.New(&out)
	snapshots := kv.NewMemoryStore()
	ctx := context.Background()

	programs, logs := newServices(memory.NewProgramRepository(), memory.NewWorkoutLogRepository(), nil, logger)
	hub := newHub(config.TimerConfig{
		FlushTimeout:       time.Second,
		RestPresets:        []int{60},
		DefaultRestSeconds: 60,
	}, snapshots, logs, logger)
	t.Cleanup(func() { _ = hub.Close(ctx) })

	user := primitive.NewObjectID()
	start := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	program, err := programs.CreateProgram(ctx, user, service.CreateProgramInput{
		Name:         "Push Pull",
		Mode:         domain.ScheduleRotation,
		StartingDate: &start,
		Days:         []service.ProgramDayInput{{DayNumber: 1, Title: "Push", HasWorkout: true}},
	})
	require.NoError(t, err)

	key := timer.NewScopeKey(start, program.ID.Hex())
	require.NoError(t, snapshots.Set("timer:session:"+key.String(), "{not json"))

	coord := hub.For(user.Hex())
	_, err = coord.SwitchScope(ctx, timer.Scope{Key: key, Title: "Push"})
	require.NoError(t, err)
	_, err = coord.StartSession(ctx)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, `"component":"snapshot-store"`)
	assert.Contains(t, text, `"component":"program-log"`)
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		assert.Equal(t, 1, strings.Count(line, `"component"`), line)
	}
}
