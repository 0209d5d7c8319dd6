// Package connect provides the Connect RPC timer service and its client.
package connect

// ServiceName is the fully-qualified name of the timer service.
const ServiceName = "hiitbox.v1.TimerService"

// Procedure paths of the timer service.
const (
	AddExerciseProcedure    = "/" + ServiceName + "/AddExercise"
	StartProcedure          = "/" + ServiceName + "/Start"
	PauseProcedure          = "/" + ServiceName + "/Pause"
	ResumeProcedure         = "/" + ServiceName + "/Resume"
	ResetProcedure          = "/" + ServiceName + "/Reset"
	GoAgainProcedure        = "/" + ServiceName + "/GoAgain"
	RateBlockProcedure      = "/" + ServiceName + "/RateBlock"
	FinishExerciseProcedure = "/" + ServiceName + "/FinishExercise"
	FinishWorkoutProcedure  = "/" + ServiceName + "/FinishWorkout"
	GetSnapshotProcedure    = "/" + ServiceName + "/GetSnapshot"
	ListExercisesProcedure  = "/" + ServiceName + "/ListExercises"
	SubscribeProcedure      = "/" + ServiceName + "/Subscribe"
)

// controlProcedures change timer state and require the control token.
var controlProcedures = map[string]bool{
	AddExerciseProcedure:    true,
	StartProcedure:          true,
	PauseProcedure:          true,
	ResumeProcedure:         true,
	ResetProcedure:          true,
	GoAgainProcedure:        true,
	RateBlockProcedure:      true,
	FinishExerciseProcedure: true,
	FinishWorkoutProcedure:  true,
}

// IsControlProcedure reports whether the procedure requires the control token.
func IsControlProcedure(procedure string) bool {
	return controlProcedures[procedure]
}
