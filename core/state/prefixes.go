package state

var (
	lockdropConfigKeyBytes        = []byte("lockdrop/config")
	lockdropStateKeyBytes         = []byte("lockdrop/state")
	lockdropUsersKeyBytes         = []byte("lockdrop/users")
	lockdropEntryPrefix           = []byte("lockdrop/entry/")
	lockdropUserDurationsPrefix   = []byte("lockdrop/durations/")
	poolDefinitionPrefix          = []byte("pool/definition/")
	poolIndexKeyBytes             = []byte("pool/index")
	generatorStakePrefix          = []byte("generator/stake/")
	generatorTotalStakedKeyFormat = "generator/total/%x/%s"
)
