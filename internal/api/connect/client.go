package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a typed client of the timer service.
type Client struct {
	token string
	calls map[string]*connect.Client[structpb.Struct, structpb.Struct]
}

// NewClient creates a client for the service at baseURL. A non-empty token is
// sent as the control token on every call.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	procedures := []string{
		AddExerciseProcedure, StartProcedure, PauseProcedure, ResumeProcedure,
		ResetProcedure, GoAgainProcedure, RateBlockProcedure, FinishExerciseProcedure,
		FinishWorkoutProcedure, GetSnapshotProcedure, ListExercisesProcedure, SubscribeProcedure,
	}

	c := &Client{
		token: token,
		calls: make(map[string]*connect.Client[structpb.Struct, structpb.Struct], len(procedures)),
	}
	for _, procedure := range procedures {
		c.calls[procedure] = connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+procedure, opts...)
	}
	return c
}

func (c *Client) request(m map[string]any) (*connect.Request[structpb.Struct], error) {
	msg, err := encodeMessage(m)
	if err != nil {
		return nil, err
	}
	req := connect.NewRequest(msg)
	if c.token != "" {
		req.Header().Set(ControlTokenHeader, c.token)
	}
	return req, nil
}

func (c *Client) call(ctx context.Context, procedure string, in map[string]any, out any) error {
	req, err := c.request(in)
	if err != nil {
		return err
	}
	resp, err := c.calls[procedure].CallUnary(ctx, req)
	if err != nil {
		return err
	}
	return decodeMessage(resp.Msg, out)
}

// AddExercise adds an exercise slot.
func (c *Client) AddExercise(ctx context.Context, req AddExerciseRequest) (ExerciseView, error) {
	in := map[string]any{"movement": req.Movement}
	if req.WorkDuration != nil {
		in["work_duration"] = *req.WorkDuration
	}
	if req.RestDuration != nil {
		in["rest_duration"] = *req.RestDuration
	}
	if req.Rounds != nil {
		in["rounds"] = *req.Rounds
	}

	var out ExerciseView
	err := c.call(ctx, AddExerciseProcedure, in, &out)
	return out, err
}

// Start starts an exercise's timer.
func (c *Client) Start(ctx context.Context, exerciseID string) (CommandResult, error) {
	return c.command(ctx, StartProcedure, exerciseID)
}

// Pause pauses an exercise's timer.
func (c *Client) Pause(ctx context.Context, exerciseID string) (CommandResult, error) {
	return c.command(ctx, PauseProcedure, exerciseID)
}

// Resume resumes an exercise's timer.
func (c *Client) Resume(ctx context.Context, exerciseID string) (CommandResult, error) {
	return c.command(ctx, ResumeProcedure, exerciseID)
}

// Reset resets an exercise's timer.
func (c *Client) Reset(ctx context.Context, exerciseID string) (CommandResult, error) {
	return c.command(ctx, ResetProcedure, exerciseID)
}

// GoAgain records the finished block of an exercise.
func (c *Client) GoAgain(ctx context.Context, exerciseID string) (CommandResult, error) {
	return c.command(ctx, GoAgainProcedure, exerciseID)
}

// RateBlock rates a block of an exercise.
func (c *Client) RateBlock(ctx context.Context, exerciseID string, index, difficulty int) (CommandResult, error) {
	var out CommandResult
	err := c.call(ctx, RateBlockProcedure, map[string]any{
		"exercise_id": exerciseID,
		"index":       index,
		"difficulty":  difficulty,
	}, &out)
	return out, err
}

func (c *Client) command(ctx context.Context, procedure, exerciseID string) (CommandResult, error) {
	var out CommandResult
	err := c.call(ctx, procedure, map[string]any{"exercise_id": exerciseID}, &out)
	return out, err
}

// FinishExercise finalizes an exercise.
func (c *Client) FinishExercise(ctx context.Context, exerciseID string) (EntryView, error) {
	var out EntryView
	err := c.call(ctx, FinishExerciseProcedure, map[string]any{"exercise_id": exerciseID}, &out)
	return out, err
}

// FinishWorkout ends the workout.
func (c *Client) FinishWorkout(ctx context.Context) (RecordView, error) {
	var out RecordView
	err := c.call(ctx, FinishWorkoutProcedure, map[string]any{}, &out)
	return out, err
}

// GetSnapshot returns an exercise and its engine state.
func (c *Client) GetSnapshot(ctx context.Context, exerciseID string) (ExerciseView, error) {
	var out ExerciseView
	err := c.call(ctx, GetSnapshotProcedure, map[string]any{"exercise_id": exerciseID}, &out)
	return out, err
}

// ExerciseList is the ListExercises response.
type ExerciseList struct {
	WorkoutID string         `mapstructure:"workout_id"`
	Phase     string         `mapstructure:"phase"`
	Exercises []ExerciseView `mapstructure:"exercises"`
}

// ListExercises lists every exercise of the workout.
func (c *Client) ListExercises(ctx context.Context) (ExerciseList, error) {
	var out ExerciseList
	err := c.call(ctx, ListExercisesProcedure, map[string]any{}, &out)
	return out, err
}

// Watch streams notifications to fn until the stream ends, ctx is done or
// fn returns an error. An empty exerciseID watches every exercise.
func (c *Client) Watch(ctx context.Context, exerciseID string, fn func(NotificationView) error) error {
	req, err := c.request(map[string]any{"exercise_id": exerciseID})
	if err != nil {
		return err
	}

	stream, err := c.calls[SubscribeProcedure].CallServerStream(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		var n NotificationView
		if err := decodeMessage(stream.Msg(), &n); err != nil {
			return err
		}
		if err := fn(n); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil && connect.CodeOf(err) != connect.CodeCanceled {
		return errors.Wrap(err, "notification stream")
	}
	return nil
}
