package wakelock

func newInhibitor() (*Inhibitor, error) {
	return NewCommand("caffeinate", "-d", "-i")
}
