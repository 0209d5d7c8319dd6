// Package main provides the timer CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/hiitbox/internal/api/connect"
	"github.com/osa030/hiitbox/internal/domain/workout"
	"github.com/osa030/hiitbox/internal/infra/config"
)

var (
	app    = kingpin.New("hiitbox-timercli", "hiitbox interval timer client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Control token (or set "+config.EnvControlToken+" env)").Envar(config.EnvControlToken).String()

	addWorkSet, addRestSet, addRoundsSet bool

	addCmd      = app.Command("add", "Add an interval exercise")
	addMovement = addCmd.Arg("movement", "Movement name").Required().String()
	addWork     = addCmd.Flag("work", "Work seconds per round (default: server)").IsSetByUser(&addWorkSet).Int()
	addRest     = addCmd.Flag("rest", "Rest seconds between rounds (default: server)").IsSetByUser(&addRestSet).Int()
	addRounds   = addCmd.Flag("rounds", "Rounds per block (default: server)").IsSetByUser(&addRoundsSet).Int()

	startCmd = app.Command("start", "Start an exercise's timer")
	startID  = startCmd.Arg("exercise-id", "Exercise ID").Required().String()

	pauseCmd = app.Command("pause", "Pause an exercise's timer")
	pauseID  = pauseCmd.Arg("exercise-id", "Exercise ID").Required().String()

	resumeCmd = app.Command("resume", "Resume an exercise's timer")
	resumeID  = resumeCmd.Arg("exercise-id", "Exercise ID").Required().String()

	resetCmd = app.Command("reset", "Reset an exercise's timer to idle")
	resetID  = resetCmd.Arg("exercise-id", "Exercise ID").Required().String()

	againCmd = app.Command("again", "Record the finished block and go again")
	againID  = againCmd.Arg("exercise-id", "Exercise ID").Required().String()

	rateCmd        = app.Command("rate", "Rate a block (1=Very Easy .. 5=Very Hard)")
	rateID         = rateCmd.Arg("exercise-id", "Exercise ID").Required().String()
	rateIndex      = rateCmd.Arg("index", "Block index (the next index rates the finished block)").Required().Int()
	rateDifficulty = rateCmd.Arg("difficulty", "Difficulty").Required().Int()

	statusCmd = app.Command("status", "Show an exercise's timer state")
	statusID  = statusCmd.Arg("exercise-id", "Exercise ID").Required().String()

	listCmd = app.Command("list", "List the workout's exercises")

	watchCmd = app.Command("watch", "Stream timer notifications")
	watchID  = watchCmd.Arg("exercise-id", "Exercise ID (default: all)").String()

	finishCmd = app.Command("finish", "Finalize an exercise into the workout record")
	finishID  = finishCmd.Arg("exercise-id", "Exercise ID").Required().String()

	finishWorkoutCmd = app.Command("finish-workout", "End the workout and print its record")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewClient(http.DefaultClient, *server, *token)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case addCmd.FullCommand():
		err = add(ctx, client)
	case startCmd.FullCommand():
		err = runCommand("start", *startID, func() (apiconnect.CommandResult, error) { return client.Start(ctx, *startID) })
	case pauseCmd.FullCommand():
		err = runCommand("pause", *pauseID, func() (apiconnect.CommandResult, error) { return client.Pause(ctx, *pauseID) })
	case resumeCmd.FullCommand():
		err = runCommand("resume", *resumeID, func() (apiconnect.CommandResult, error) { return client.Resume(ctx, *resumeID) })
	case resetCmd.FullCommand():
		err = runCommand("reset", *resetID, func() (apiconnect.CommandResult, error) { return client.Reset(ctx, *resetID) })
	case againCmd.FullCommand():
		err = runCommand("again", *againID, func() (apiconnect.CommandResult, error) { return client.GoAgain(ctx, *againID) })
	case rateCmd.FullCommand():
		err = runCommand("rate", *rateID, func() (apiconnect.CommandResult, error) {
			return client.RateBlock(ctx, *rateID, *rateIndex, *rateDifficulty)
		})
	case statusCmd.FullCommand():
		err = status(ctx, client, *statusID)
	case listCmd.FullCommand():
		err = list(ctx, client)
	case watchCmd.FullCommand():
		err = watch(ctx, client, *watchID)
	case finishCmd.FullCommand():
		err = finish(ctx, client, *finishID)
	case finishWorkoutCmd.FullCommand():
		err = finishWorkout(ctx, client)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// optionalInt returns v only when the flag was given, leaving the server default otherwise.
func optionalInt(set bool, v *int) *int {
	if !set {
		return nil
	}
	return v
}

func add(ctx context.Context, client *apiconnect.Client) error {
	ex, err := client.AddExercise(ctx, apiconnect.AddExerciseRequest{
		Movement:     *addMovement,
		WorkDuration: optionalInt(addWorkSet, addWork),
		RestDuration: optionalInt(addRestSet, addRest),
		Rounds:       optionalInt(addRoundsSet, addRounds),
	})
	if err != nil {
		return err
	}
	fmt.Printf("Exercise added: %s\n", ex.ID)
	printExercise(ex)
	return nil
}

func runCommand(name, exerciseID string, fn func() (apiconnect.CommandResult, error)) error {
	res, err := fn()
	if err != nil {
		return err
	}
	if res.Applied {
		fmt.Printf("%s: applied (%s)\n", name, exerciseID)
	} else {
		fmt.Printf("%s: ignored in phase %s (%s)\n", name, res.Snapshot.Phase, exerciseID)
	}
	printSnapshot(res.Snapshot)
	return nil
}

func status(ctx context.Context, client *apiconnect.Client, exerciseID string) error {
	ex, err := client.GetSnapshot(ctx, exerciseID)
	if err != nil {
		return err
	}
	printExercise(ex)
	return nil
}

func list(ctx context.Context, client *apiconnect.Client) error {
	resp, err := client.ListExercises(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\n=== WORKOUT %s (%s) ===\n", resp.WorkoutID, resp.Phase)
	if len(resp.Exercises) == 0 {
		fmt.Println("No exercises")
		return nil
	}
	for _, ex := range resp.Exercises {
		state := ex.Snapshot.Phase
		if ex.Finished {
			state = "finished"
		}
		fmt.Printf("  %s  %-16s %2dx %ds/%ds  %-9s blocks=%d\n",
			ex.ID, ex.Movement, ex.Rounds, ex.WorkDuration, ex.RestDuration,
			state, len(ex.Snapshot.CompletedBlocks))
	}
	fmt.Println()
	return nil
}

func watch(ctx context.Context, client *apiconnect.Client, exerciseID string) error {
	fmt.Println("Watching timer notifications (Ctrl+C to stop)...")
	return client.Watch(ctx, exerciseID, func(n apiconnect.NotificationView) error {
		printNotification(n)
		return nil
	})
}

func finish(ctx context.Context, client *apiconnect.Client, exerciseID string) error {
	entry, err := client.FinishExercise(ctx, exerciseID)
	if err != nil {
		return err
	}
	fmt.Println("Exercise finished")
	printEntry(entry)
	return nil
}

func finishWorkout(ctx context.Context, client *apiconnect.Client) error {
	record, err := client.FinishWorkout(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\n=== WORKOUT RECORD %s ===\n", record.ID)
	fmt.Printf("Started: %s\n", record.StartedAt)
	fmt.Printf("Ended: %s\n", record.EndedAt)
	fmt.Printf("Blocks: %d\n", record.BlockCount)
	fmt.Printf("Average Difficulty: %.1f (%s)\n", record.AverageDifficulty, record.AverageLabel)
	for _, entry := range record.Exercises {
		printEntry(entry)
	}
	fmt.Println()
	return nil
}

func printNotification(n apiconnect.NotificationView) {
	switch n.Type {
	case apiconnect.NotificationTypeInitialState:
		fmt.Printf("\n=== INITIAL STATE === %s (%s)\n", n.ExerciseID, n.Movement)
	case "tick":
		// Ticks overwrite one line
		if n.Snapshot != nil {
			fmt.Printf("\r[%d] %-9s round %d/%d  %3ds  elapsed %ds   ",
				n.SequenceNo, n.Snapshot.Phase, n.Snapshot.CurrentRound, n.Snapshot.Rounds,
				n.Snapshot.TimeRemaining, n.Snapshot.TotalElapsed)
		}
		return
	default:
		fmt.Printf("\n[Sequence: %d] %s %s\n", n.SequenceNo, n.Type, n.ExerciseID)
	}
	if n.Snapshot != nil {
		printSnapshot(*n.Snapshot)
	}
	if n.Entry != nil {
		printEntry(*n.Entry)
	}
}

func printExercise(ex apiconnect.ExerciseView) {
	fmt.Printf("\nExercise %s\n", ex.ID)
	fmt.Printf("  Movement: %s\n", ex.Movement)
	fmt.Printf("  Work: %ds  Rest: %ds  Rounds: %d  (%ds per block)\n",
		ex.WorkDuration, ex.RestDuration, ex.Rounds,
		workout.PlannedDuration(ex.WorkDuration, ex.RestDuration, ex.Rounds))
	fmt.Printf("  Finished: %v\n", ex.Finished)
	printSnapshot(ex.Snapshot)
	if ex.Entry != nil {
		printEntry(*ex.Entry)
	}
}

func printSnapshot(s apiconnect.SnapshotView) {
	phase := s.Phase
	if s.Phase == "paused" {
		phase = fmt.Sprintf("paused (from %s)", s.PausedFrom)
	}
	fmt.Printf("  Phase: %s\n", phase)
	fmt.Printf("  Round: %d/%d  Remaining: %ds  Elapsed: %ds\n",
		s.CurrentRound, s.Rounds, s.TimeRemaining, s.TotalElapsed)
	if s.PendingDifficulty != workout.DifficultyNone {
		fmt.Printf("  Pending Rating: %s\n", workout.DifficultyLabel(s.PendingDifficulty))
	}
	for i, b := range s.CompletedBlocks {
		fmt.Printf("  Block %d: %ds %s\n", i, b.TotalTime, workout.DifficultyLabel(b.Difficulty))
	}
}

func printEntry(e apiconnect.EntryView) {
	fmt.Printf("  Entry %s (%s): %d blocks, %ds, complete=%v\n",
		e.ExerciseID, e.Movement, len(e.Blocks), e.TotalTime, e.IsComplete)
	for i, b := range e.Blocks {
		fmt.Printf("    Block %d: %ds %s\n", i, b.TotalTime, workout.DifficultyLabel(b.Difficulty))
	}
}
