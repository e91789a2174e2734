package migrate

var (
	Version   = "dev"
	GitCommit = ""
)
