package config

// UserConfig holds all of the user-configurable options. The fields here are all in PascalCase but in your actual config.yml they'll be in camelCase. You can view the default config with `gdev --config`. Any key you leave out keeps its default, so you only need to write down what you want to change
type UserConfig struct {
	// Language is the language of gdev's own messages. `auto` picks it up from your environment
	Language string `yaml:"language,omitempty"`

	// Build determines the defaults for the image we compose and build
	Build BuildConfig `yaml:"build,omitempty"`

	// Layout determines where gdev looks for config files and where it writes dockerfiles. These are all relative to the repo root, apart from the in-container directories
	Layout LayoutConfig `yaml:"layout,omitempty"`

	// CommandTemplates determines what commands actually get called when we shell out
	CommandTemplates CommandTemplatesConfig `yaml:"commandTemplates,omitempty"`

	// Mixins determines which mixins get which special treatment in the build and at run time
	Mixins MixinConfig `yaml:"mixins,omitempty"`
}

// BuildConfig holds the image level defaults, each of which can be overridden on the command line
type BuildConfig struct {
	// BaseImage is the image every stage is ultimately built FROM. It is also implicitly added to the enabled options, so config lines can be gated on it
	BaseImage string `yaml:"baseImage,omitempty"`

	// Registry is the registry we pull cache layers from and push images to. Leave it empty to build without a remote cache
	Registry string `yaml:"registry,omitempty"`

	// Platform is the target platform, e.g. linux/arm64. Leave it empty to build for the host
	Platform string `yaml:"platform,omitempty"`

	// ShmSize is passed to both `docker buildx build` and `docker run`
	ShmSize string `yaml:"shmSize,omitempty"`
}

// LayoutConfig describes where things live on the host and in the image
type LayoutConfig struct {
	// ConfigFilename is the name of the per-directory config file
	ConfigFilename string `yaml:"configFilename,omitempty"`

	// OutputDir is where generated dockerfiles are written, relative to the repo root
	OutputDir string `yaml:"outputDir,omitempty"`

	// MixinDir is the directory holding one sub-directory per mixin, relative to the repo root
	MixinDir string `yaml:"mixinDir,omitempty"`

	// SourceDir is where the repo is copied and mounted inside the image
	SourceDir string `yaml:"sourceDir,omitempty"`

	// BuildDir is the in-image build tree; each target's WORKDIR lives under it
	BuildDir string `yaml:"buildDir,omitempty"`
}

// CommandTemplatesConfig determines what commands actually get called when we shell out. These are split like a shell would, so `sudo docker` works
type CommandTemplatesConfig struct {
	Docker string `yaml:"docker,omitempty"`
	Git    string `yaml:"git,omitempty"`
}

// MixinConfig groups mixins into the classes that change how we build and run an image
type MixinConfig struct {
	// HostIdentity mixins get a user inside the image matching your host user, with passwordless sudo
	HostIdentity []string `yaml:"hostIdentity,omitempty"`

	// RemoteAccess mixins expose port 22 and mount your authorized_keys
	RemoteAccess []string `yaml:"remoteAccess,omitempty"`

	// Debugger mixins get ptrace and an unconfined seccomp profile
	Debugger []string `yaml:"debugger,omitempty"`

	// OwnershipPreserving mixins run the container as your host uid:gid
	OwnershipPreserving []string `yaml:"ownershipPreserving,omitempty"`
}

// GetDefaultConfig returns the application default configuration
// NOTE (to contributors, not users): do not default a boolean to true, because false is the boolean zero value and this will be ignored when parsing the user's config
func GetDefaultConfig() UserConfig {
	return UserConfig{
		Language: "auto",
		Build: BuildConfig{
			BaseImage: "ubuntu:20.04",
			Registry:  "",
			Platform:  "",
			ShmSize:   "1gb",
		},
		Layout: LayoutConfig{
			ConfigFilename: "gdev.cfg",
			OutputDir:      ".gdev",
			MixinDir:       "dev_tools/gdev/mixin",
			SourceDir:      "/source",
			BuildDir:       "/build",
		},
		CommandTemplates: CommandTemplatesConfig{
			Docker: "docker",
			Git:    "git",
		},
		Mixins: MixinConfig{
			HostIdentity:        []string{"clion", "sudo", "vscode"},
			RemoteAccess:        []string{"clion", "sshd", "vscode"},
			Debugger:            []string{"gdb"},
			OwnershipPreserving: []string{"sudo"},
		},
	}
}
