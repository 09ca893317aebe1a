// Package main is the entry point for the datashuttle CLI.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/alexflint/go-arg"
	"github.com/charmbracelet/lipgloss"
	"github.com/ghodss/yaml"
	"golang.org/x/term" //nolint:depguard // Required for TTY detection

	"github.com/joe/datashuttle/internal/config"
	"github.com/joe/datashuttle/internal/project"
	"github.com/joe/datashuttle/pkg/names"
)

type makeConfigFileCmd struct {
	LocalPath            string `arg:"--local-path,required" help:"Full path of the project on this machine"`
	CentralPath          string `arg:"--central-path,required" help:"Full path of the project on the central store"`
	ConnectionMethod     string `arg:"--connection-method" default:"local_filesystem" help:"local_filesystem or ssh"`
	CentralHostID        string `arg:"--central-host-id" help:"Hostname of the central machine (ssh only)"`
	CentralHostUsername  string `arg:"--central-host-username" help:"Username on the central machine (ssh only)"`
	OverwriteOldFiles    bool   `arg:"--overwrite-old-files" help:"Let newer source files replace destination files"`
	TransferVerbosity    string `arg:"--transfer-verbosity" default:"v" help:"Transfer log detail: v or vv"`
	ShowTransferProgress bool   `arg:"--show-transfer-progress" help:"Show live rclone progress"`
	UseEphys             bool   `arg:"--use-ephys" default:"true" help:"Enable the ephys data type"`
	UseBehav             bool   `arg:"--use-behav" default:"true" help:"Enable the behav data type"`
	UseFuncimg           bool   `arg:"--use-funcimg" default:"true" help:"Enable the funcimg data type"`
	UseHistology         bool   `arg:"--use-histology" default:"true" help:"Enable the histology data type"`
}

type updateConfigCmd struct {
	Key   string `arg:"positional,required" help:"Config key to change"`
	Value string `arg:"positional,required" help:"New value"`
}

type makeSubFoldersCmd struct {
	Subs      []string `arg:"--sub,required,separate" help:"Subject name, number, or range (repeatable)"`
	Sess      []string `arg:"--ses,separate" help:"Session name, number, or range (repeatable)"`
	DataTypes []string `arg:"--data-type,separate" help:"Data types to create, all, or none (repeatable)"`
}

type transferCmd struct {
	Subs      []string `arg:"--sub,required,separate" help:"Subject names, all, or @*@ wildcards (repeatable)"`
	Sess      []string `arg:"--ses,separate" help:"Session names, all, or @*@ wildcards (repeatable)"`
	DataTypes []string `arg:"--data-type,separate" help:"Data types to transfer, or all (repeatable)"`
	DryRun    bool     `arg:"--dry-run" help:"Show what would be transferred without copying"`
}

type allCmd struct {
	DryRun bool `arg:"--dry-run" help:"Show what would be transferred without copying"`
}

type specificCmd struct {
	Path   string `arg:"positional,required" help:"File or folder path relative to the current top-level folder"`
	DryRun bool   `arg:"--dry-run" help:"Show what would be transferred without copying"`
}

type setTopLevelFolderCmd struct {
	Folder string `arg:"positional,required" help:"rawdata or derivatives"`
}

type nextSubNumberCmd struct{}

type nextSesNumberCmd struct {
	Sub string `arg:"positional,required" help:"Subject to suggest the next session for"`
}

type checkNameFormattingCmd struct {
	Prefix string   `arg:"positional,required" help:"sub or ses"`
	Names  []string `arg:"positional,required" help:"Names to format and validate"`
}

type showCmd struct {
	What string `arg:"positional,required" help:"paths, config, config-path, or tree"`
}

type setupSSHCmd struct{}

type cli struct {
	Project string `arg:"-p,--project,required" help:"Project name"`

	MakeConfigFile        *makeConfigFileCmd      `arg:"subcommand:make-config-file" help:"Create the project config"`
	UpdateConfig          *updateConfigCmd        `arg:"subcommand:update-config" help:"Change one config entry"`
	MakeSubFolders        *makeSubFoldersCmd      `arg:"subcommand:make-sub-folders" help:"Create subject and session folders locally"`
	Upload                *transferCmd            `arg:"subcommand:upload" help:"Transfer selected folders to the central store"`
	Download              *transferCmd            `arg:"subcommand:download" help:"Transfer selected folders from the central store"`
	UploadAll             *allCmd                 `arg:"subcommand:upload-all" help:"Upload the current top-level folder"`
	DownloadAll           *allCmd                 `arg:"subcommand:download-all" help:"Download the current top-level folder"`
	UploadFolderOrFile    *specificCmd            `arg:"subcommand:upload-folder-or-file" help:"Upload a single file or folder"`
	DownloadFolderOrFile  *specificCmd            `arg:"subcommand:download-folder-or-file" help:"Download a single file or folder"`
	UploadEntireProject   *allCmd                 `arg:"subcommand:upload-entire-project" help:"Upload every top-level folder"`
	DownloadEntireProject *allCmd                 `arg:"subcommand:download-entire-project" help:"Download every top-level folder"`
	SetTopLevelFolder     *setTopLevelFolderCmd   `arg:"subcommand:set-top-level-folder" help:"Switch the current top-level folder"`
	NextSubNumber         *nextSubNumberCmd       `arg:"subcommand:next-sub-number" help:"Suggest the next free subject number"`
	NextSesNumber         *nextSesNumberCmd       `arg:"subcommand:next-ses-number" help:"Suggest the next free session number"`
	CheckNameFormatting   *checkNameFormattingCmd `arg:"subcommand:check-name-formatting" help:"Preview name expansion without creating folders"`
	Show                  *showCmd                `arg:"subcommand:show" help:"Show the project paths or local tree"`
	SetupSSH              *setupSSHCmd            `arg:"subcommand:setup-ssh" help:"One-time SSH key setup for the central host"`
}

// Description returns the program description for go-arg.
func (cli) Description() string {
	return "Manage standardized research project folders and move them between local and central storage"
}

// Version returns the version string for go-arg.
func (cli) Version() string {
	return "datashuttle 0.1.0"
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// render applies a style only when stdout is a terminal.
func render(style lipgloss.Style, text string) string {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return style.Render(text)
	}

	return text
}

func main() {
	var args cli
	parser := arg.MustParse(&args)

	if parser.Subcommand() == nil {
		parser.Fail("a subcommand is required")
	}

	if err := run(&args); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", render(errorStyle, "Error:"), err)
		os.Exit(1)
	}
}

func run(args *cli) error {
	p, err := project.New(args.Project)
	if err != nil {
		return err
	}

	switch {
	case args.MakeConfigFile != nil:
		return runMakeConfigFile(p, args.MakeConfigFile)
	case args.UpdateConfig != nil:
		return p.UpdateConfig(args.UpdateConfig.Key, args.UpdateConfig.Value)
	case args.MakeSubFolders != nil:
		return runMakeSubFolders(p, args.MakeSubFolders)
	case args.Upload != nil:
		return p.Upload(args.Upload.Subs, args.Upload.Sess, args.Upload.DataTypes, args.Upload.DryRun)
	case args.Download != nil:
		return p.Download(args.Download.Subs, args.Download.Sess, args.Download.DataTypes, args.Download.DryRun)
	case args.UploadAll != nil:
		return p.UploadAll(args.UploadAll.DryRun)
	case args.DownloadAll != nil:
		return p.DownloadAll(args.DownloadAll.DryRun)
	case args.UploadFolderOrFile != nil:
		return p.UploadFolderOrFile(args.UploadFolderOrFile.Path, args.UploadFolderOrFile.DryRun)
	case args.DownloadFolderOrFile != nil:
		return p.DownloadFolderOrFile(args.DownloadFolderOrFile.Path, args.DownloadFolderOrFile.DryRun)
	case args.UploadEntireProject != nil:
		return p.UploadEntireProject(args.UploadEntireProject.DryRun)
	case args.DownloadEntireProject != nil:
		return p.DownloadEntireProject(args.DownloadEntireProject.DryRun)
	case args.SetTopLevelFolder != nil:
		return p.SetTopLevelFolder(args.SetTopLevelFolder.Folder)
	case args.NextSubNumber != nil:
		return runNextNumber(p, "")
	case args.NextSesNumber != nil:
		return runNextNumber(p, args.NextSesNumber.Sub)
	case args.CheckNameFormatting != nil:
		return runCheckNameFormatting(p, args.CheckNameFormatting)
	case args.Show != nil:
		return runShow(p, args.Show)
	case args.SetupSSH != nil:
		return runSetupSSH(p)
	}

	return nil
}

func runMakeConfigFile(p *project.Project, cmd *makeConfigFileCmd) error {
	cfg := config.Configs{
		LocalPath:            cmd.LocalPath,
		CentralPath:          cmd.CentralPath,
		ConnectionMethod:     cmd.ConnectionMethod,
		CentralHostID:        cmd.CentralHostID,
		CentralHostUsername:  cmd.CentralHostUsername,
		OverwriteOldFiles:    cmd.OverwriteOldFiles,
		TransferVerbosity:    cmd.TransferVerbosity,
		ShowTransferProgress: cmd.ShowTransferProgress,
		UseEphys:             cmd.UseEphys,
		UseBehav:             cmd.UseBehav,
		UseFuncimg:           cmd.UseFuncimg,
		UseHistology:         cmd.UseHistology,
	}

	if err := p.MakeConfigFile(cfg); err != nil {
		return err
	}

	fmt.Printf("%s %s\n", render(titleStyle, "Config written:"), p.Store.ConfigPath())

	return nil
}

func runMakeSubFolders(p *project.Project, cmd *makeSubFoldersCmd) error {
	created, err := p.MakeSubFolders(cmd.Subs, cmd.Sess, cmd.DataTypes)
	if err != nil {
		return err
	}

	fmt.Println(render(titleStyle, fmt.Sprintf("Made %d folders:", len(created))))
	for _, path := range created {
		fmt.Println("  " + path)
	}

	return nil
}

func runNextNumber(p *project.Project, sub string) error {
	var (
		next, max int
		err       error
		label     = "sub"
	)

	if sub == "" {
		next, max, err = p.NextSubNumber()
	} else {
		next, max, err = p.NextSesNumber(sub)
		label = "ses"
	}
	if err != nil {
		return err
	}

	fmt.Printf("next %s number: %d (highest existing: %d)\n", label, next, max)

	return nil
}

func runCheckNameFormatting(p *project.Project, cmd *checkNameFormattingCmd) error {
	var prefix names.Prefix
	switch cmd.Prefix {
	case "sub":
		prefix = names.Sub
	case "ses":
		prefix = names.Ses
	default:
		return fmt.Errorf("prefix must be sub or ses, got %q", cmd.Prefix)
	}

	formatted, err := p.CheckNameFormatting(prefix, cmd.Names)
	if err != nil {
		return err
	}

	for _, name := range formatted {
		fmt.Println(name)
	}

	return nil
}

func runShow(p *project.Project, cmd *showCmd) error {
	switch cmd.What {
	case "paths":
		if p.Cfg == nil {
			return fmt.Errorf("project %s has no config yet", p.Name)
		}
		fmt.Printf("%s %s\n", render(titleStyle, "local:"), p.Cfg.LocalPath)
		fmt.Printf("%s %s\n", render(titleStyle, "central:"), p.Cfg.CentralPath)
		fmt.Printf("%s %s\n", render(titleStyle, "top-level folder:"), p.Settings.TopLevelFolder)

		return nil
	case "config":
		if p.Cfg == nil {
			return fmt.Errorf("project %s has no config yet", p.Name)
		}
		raw, err := yaml.Marshal(p.Cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(raw))

		return nil
	case "config-path":
		fmt.Println(p.Store.ConfigPath())

		return nil
	case "tree":
		out, err := p.ShowLocalTree()
		if err != nil {
			return err
		}
		fmt.Print(out)

		return nil
	default:
		return fmt.Errorf("show target must be paths, config, config-path, or tree, got %q", cmd.What)
	}
}

func runSetupSSH(p *project.Project) error {
	if p.Cfg == nil {
		return fmt.Errorf("project %s has no config yet", p.Name)
	}

	fmt.Printf("Password for %s@%s: ", p.Cfg.CentralHostUsername, p.Cfg.CentralHostID)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	accept := func(fingerprint string) bool {
		fmt.Printf("Host key fingerprint: %s\nAccept and continue? [y/N]: ", fingerprint)

		answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return false
		}

		return strings.EqualFold(strings.TrimSpace(answer), "y")
	}

	if err := p.SetupSSH(string(password), accept); err != nil {
		return err
	}

	fmt.Println(render(titleStyle, "SSH setup complete: future connections use the generated key."))

	return nil
}
