package builder

// labelKeys holds the fully qualified names of the labels that drive graph
// derivation.
type labelKeys struct {
	version        string
	remove         string
	arch           string
	blockedFor     string
	previousAdd    string
	previousRemove string
	nextAdd        string
	nextRemove     string
}

func newLabelKeys(prefix string) labelKeys {
	return labelKeys{
		version:        prefix + ".release.version",
		remove:         prefix + ".release.remove",
		arch:           prefix + ".release.arch",
		blockedFor:     prefix + ".release.blocked-for",
		previousAdd:    prefix + ".previous.add",
		previousRemove: prefix + ".previous.remove",
		nextAdd:        prefix + ".next.add",
		nextRemove:     prefix + ".next.remove",
	}
}
