package i18n

// TranslationSet is a set of localised strings for a given language
type TranslationSet struct {
	ErrorOccurred                 string
	ConnectionFailed              string
	CannotAccessDockerSocketError string
	CreatingDockerfile            string
	DockerfileChanged             string
	BuildingImage                 string
	ImageUpToDate                 string
	RemovingFailedDockerfile      string
	BindingHostPath               string
	CreatingHostPath              string
	PushingImage                  string
	RunningContainer              string
}

func englishSet() TranslationSet {
	return TranslationSet{
		ErrorOccurred:                 "An error occurred! Run again with --log-level debug for the full story",
		ConnectionFailed:              "connection to docker client failed. You may need to restart the docker client",
		CannotAccessDockerSocketError: "Can't access docker socket at: unix:///var/run/docker.sock\nRun gdev as root or read https://docs.docker.com/install/linux/linux-postinstall/",
		CreatingDockerfile:            "Creating dockerfile {{path}}",
		DockerfileChanged:             "Dockerfile {{path}} changed",
		BuildingImage:                 "Building {{tag}}",
		ImageUpToDate:                 "Image {{tag}} is up to date, skipping build",
		RemovingFailedDockerfile:      "Build failed, removing {{path}}",
		BindingHostPath:               `Binding existing host path "{{path}}" into container.`,
		CreatingHostPath:              `Creating host path "{{path}}" to bind into container.`,
		PushingImage:                  "Pushing {{ref}}",
		RunningContainer:              "Running {{tag}}",
	}
}
