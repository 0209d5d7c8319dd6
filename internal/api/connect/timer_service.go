package connect

import (
	"context"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/hiitbox/internal/app/notification"
	"github.com/osa030/hiitbox/internal/app/session"
)

// TimerService implements the TimerService RPC.
type TimerService struct {
	session *session.Manager
}

// NewTimerService creates a new TimerService.
func NewTimerService(session *session.Manager) *TimerService {
	return &TimerService{
		session: session,
	}
}

type (
	unaryFunc  = func(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error)
	streamFunc = func(context.Context, *connect.Request[structpb.Struct], *connect.ServerStream[structpb.Struct]) error
)

// NewTimerServiceHandler builds an HTTP handler that serves every procedure
// of the service. It returns the path prefix to mount it on.
func NewTimerServiceHandler(svc *TimerService, opts ...connect.HandlerOption) (string, http.Handler) {
	unary := map[string]unaryFunc{
		AddExerciseProcedure:    svc.AddExercise,
		StartProcedure:          svc.Start,
		PauseProcedure:          svc.Pause,
		ResumeProcedure:         svc.Resume,
		ResetProcedure:          svc.Reset,
		GoAgainProcedure:        svc.GoAgain,
		RateBlockProcedure:      svc.RateBlock,
		FinishExerciseProcedure: svc.FinishExercise,
		FinishWorkoutProcedure:  svc.FinishWorkout,
		GetSnapshotProcedure:    svc.GetSnapshot,
		ListExercisesProcedure:  svc.ListExercises,
	}

	mux := http.NewServeMux()
	for procedure, fn := range unary {
		mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, opts...))
	}
	var subscribe streamFunc = svc.Subscribe
	mux.Handle(SubscribeProcedure, connect.NewServerStreamHandler(SubscribeProcedure, subscribe, opts...))

	return "/" + ServiceName + "/", mux
}

// AddExercise adds an exercise slot.
func (s *TimerService) AddExercise(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var msg AddExerciseRequest
	if err := decodeMessage(req.Msg, &msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	info, err := s.session.AddExercise(session.ExerciseRequest{
		MovementID:   msg.Movement,
		WorkDuration: msg.WorkDuration,
		RestDuration: msg.RestDuration,
		Rounds:       msg.Rounds,
	})
	if err != nil {
		if errors.Is(err, session.ErrWorkoutFinished) {
			return nil, toConnectError(err)
		}
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	return respond(exerciseMap(info))
}

// Start starts an exercise's timer.
func (s *TimerService) Start(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	return s.command(req, s.session.Start)
}

// Pause pauses an exercise's timer.
func (s *TimerService) Pause(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	return s.command(req, s.session.Pause)
}

// Resume resumes an exercise's timer.
func (s *TimerService) Resume(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	return s.command(req, s.session.Resume)
}

// Reset resets an exercise's timer.
func (s *TimerService) Reset(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	return s.command(req, s.session.Reset)
}

// GoAgain records the finished block of an exercise.
func (s *TimerService) GoAgain(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	return s.command(req, s.session.GoAgain)
}

// RateBlock rates a block of an exercise.
func (s *TimerService) RateBlock(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var msg RateBlockRequest
	if err := decodeMessage(req.Msg, &msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return s.commandResult(msg.ExerciseID, func(id string) (bool, error) {
		return s.session.RateBlock(id, msg.Index, msg.Difficulty)
	})
}

func (s *TimerService) command(
	req *connect.Request[structpb.Struct],
	fn func(exerciseID string) (bool, error),
) (*connect.Response[structpb.Struct], error) {
	var msg ExerciseRequest
	if err := decodeMessage(req.Msg, &msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return s.commandResult(msg.ExerciseID, fn)
}

func (s *TimerService) commandResult(
	exerciseID string,
	fn func(exerciseID string) (bool, error),
) (*connect.Response[structpb.Struct], error) {
	applied, err := fn(exerciseID)
	if err != nil {
		return nil, toConnectError(err)
	}
	info, err := s.session.Snapshot(exerciseID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(map[string]any{
		"applied":  applied,
		"snapshot": snapshotMap(info.Snapshot),
	})
}

// FinishExercise finalizes an exercise into the workout record.
func (s *TimerService) FinishExercise(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var msg ExerciseRequest
	if err := decodeMessage(req.Msg, &msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	entry, err := s.session.FinishExercise(msg.ExerciseID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(entryMap(entry))
}

// FinishWorkout ends the workout.
func (s *TimerService) FinishWorkout(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	record, err := s.session.FinishWorkout()
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(recordMap(record))
}

// GetSnapshot returns an exercise and its engine state.
func (s *TimerService) GetSnapshot(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var msg ExerciseRequest
	if err := decodeMessage(req.Msg, &msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	info, err := s.session.Snapshot(msg.ExerciseID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(exerciseMap(info))
}

// ListExercises lists every exercise of the workout.
func (s *TimerService) ListExercises(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	infos := s.session.ListExercises()
	list := make([]any, 0, len(infos))
	for _, info := range infos {
		list = append(list, exerciseMap(info))
	}

	workoutInfo := s.session.Info()
	return respond(map[string]any{
		"workout_id": workoutInfo.WorkoutID,
		"phase":      workoutInfo.Phase.String(),
		"exercises":  list,
	})
}

// Subscribe streams timer notifications until the client leaves or the workout ends.
func (s *TimerService) Subscribe(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
	stream *connect.ServerStream[structpb.Struct],
) error {
	var msg SubscribeRequest
	if err := decodeMessage(req.Msg, &msg); err != nil {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	if msg.ExerciseID != "" {
		if _, err := s.session.Snapshot(msg.ExerciseID); err != nil {
			return toConnectError(err)
		}
	}

	notifManager := s.session.GetNotificationManager()
	adapter := &notificationStreamAdapter{stream: stream}
	defer adapter.close()
	subscriptionID := notifManager.Subscribe(adapter, msg.ExerciseID)
	defer notifManager.Unsubscribe(subscriptionID)

	// Initial state of every matching exercise
	for _, info := range s.session.ListExercises() {
		if msg.ExerciseID != "" && info.Exercise.ID != msg.ExerciseID {
			continue
		}
		m := map[string]any{
			"type":        NotificationTypeInitialState,
			"exercise_id": info.Exercise.ID,
			"movement":    info.Exercise.MovementID,
			"snapshot":    snapshotMap(info.Snapshot),
		}
		if err := adapter.sendMap(m); err != nil {
			return err
		}
	}

	select {
	case <-ctx.Done():
	case <-s.session.Done():
	}
	return nil
}

// errStreamClosed is returned for sends after the handler returned.
var errStreamClosed = errors.New("stream closed")

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
// Sends are serialized since broadcasts of several exercises may overlap.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	closed bool
	stream *connect.ServerStream[structpb.Struct]
}

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	return a.sendMap(notificationMap(n))
}

func (a *notificationStreamAdapter) sendMap(m map[string]any) error {
	msg, err := encodeMessage(m)
	if err != nil {
		zlog.Debug().Err(err).Msg("failed to encode notification")
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errStreamClosed
	}
	return a.stream.Send(msg)
}

func (a *notificationStreamAdapter) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}

func respond(m map[string]any) (*connect.Response[structpb.Struct], error) {
	msg, err := encodeMessage(m)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// toConnectError maps session errors to connect codes.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, session.ErrUnknownExercise):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, session.ErrExerciseFinished), errors.Is(err, session.ErrWorkoutFinished):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
