package wakelock

func newInhibitor() (*Inhibitor, error) {
	return NewCommand("systemd-inhibit",
		"--what=idle:sleep",
		"--who=hiitbox",
		"--why=interval session running",
		"--mode=block",
		"sleep", "infinity",
	)
}
