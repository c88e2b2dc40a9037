// Package chatcmder provides the chat command for holding an interactive
// conversation through a parley API server.
package chatcmder

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/papercomputeco/parley/pkg/cliui"
	"github.com/papercomputeco/parley/pkg/client"
	"github.com/papercomputeco/parley/pkg/config"
	"github.com/papercomputeco/parley/pkg/dotdir"
	"github.com/papercomputeco/parley/pkg/logger"
	"github.com/papercomputeco/parley/pkg/orchestrator"
	"github.com/papercomputeco/parley/pkg/preset"
	"github.com/papercomputeco/parley/pkg/utils"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("parley> ")
)

type chatCommander struct {
	apiTarget  string
	token      string
	preset     string
	title      string
	lang       string
	structured bool
	fresh      bool
	anyPreset  bool
	configDir  string
	debug      bool

	in  io.Reader
	out io.Writer

	client *client.Client
	ddm    *dotdir.Manager
	logger *zap.Logger
}

const chatLongDesc string = `Start an interactive conversation through a parley API server.

Each line you type is asked in the current conversation; replies are rendered
as markdown. The conversation key is remembered in .parley/session.json and
resumed by the next "parley chat" against the same server unless --new is
given or a different --preset is requested.

Commands inside the chat:
  /new        Start a new conversation with the same preset
  /history    Show the stored turns of the conversation
  /save       Mark the conversation as saved
  /exit       Quit (Ctrl+D works too)

With --structured, every line is sent as a JSON value when it parses as JSON
and the reply is resolved as a JSON envelope.

Examples:
  parley chat --token $PARLEY_CLIENT_TOKEN
  parley chat --preset json_generator --structured
  parley chat --new --title "Release notes"`

const chatShortDesc string = "Interactive conversation through a parley API server"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed(config.FlagAPITarget) {
				cmder.apiTarget = cfg.Client.APITarget
			}
			if !cmd.Flags().Changed(config.FlagToken) {
				cmder.token = cfg.Client.Token
				if env := os.Getenv("PARLEY_CLIENT_TOKEN"); env != "" {
					cmder.token = env
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.anyPreset = !cmd.Flags().Changed("preset")
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagToken, &cmder.token)
	cmd.Flags().StringVarP(&cmder.preset, "preset", "p", preset.Assistant, "Preset for new conversations (json_generator, assistant)")
	cmd.Flags().StringVar(&cmder.title, "title", "", "Title for a new conversation")
	cmd.Flags().StringVar(&cmder.lang, "lang", "", "Preferred language for a new conversation")
	cmd.Flags().BoolVar(&cmder.structured, "structured", false, "Send JSON questions and resolve JSON replies")
	cmd.Flags().BoolVar(&cmder.fresh, "new", false, "Start a new conversation instead of resuming")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	c.logger = logger.NewLoggerWithWriters(c.debug, os.Stderr)
	defer func() { _ = c.logger.Sync() }()

	if c.token == "" {
		return errors.New("a bearer token is required: pass --token or set client.token")
	}

	c.client = client.New(c.apiTarget, c.token)
	c.ddm = dotdir.NewManager()

	session, err := c.resumeOrIssue(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch input {
		case "/exit":
			fmt.Fprintln(c.out)
			return nil
		case "/new":
			next, err := c.issue(ctx, session.Preset)
			if err != nil {
				fmt.Fprintf(c.out, "  %s %v\n\n", cliui.FailMark, err)
				continue
			}
			session = next
			continue
		case "/history":
			c.printHistory(ctx, session)
			continue
		case "/save":
			err := c.client.Save(ctx, session.ConversationKey, true)
			fmt.Fprintf(c.out, "  %s Saved %s\n\n", cliui.Mark(err), cliui.ConversationKey(session.ConversationKey))
			continue
		}

		var answer *client.Answer
		err := cliui.Step(c.out, "Thinking", func() error {
			var askErr error
			answer, askErr = c.client.Ask(ctx, session.ConversationKey, c.question(input), c.structured)
			return askErr
		})
		if err != nil {
			fmt.Fprintf(c.out, "  %s %v\n\n", cliui.FailMark, err)
			continue
		}

		fmt.Fprintf(c.out, "%s\n%s\n", assistantPrompt, c.render(answer))

		session.UpdatedAt = time.Now().UTC()
		if err := c.ddm.SaveSession(session, c.configDir); err != nil {
			c.logger.Debug("could not save session", zap.Error(err))
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// resumeOrIssue continues the saved session when it belongs to the same
// server and preset, and issues a new conversation otherwise.
func (c *chatCommander) resumeOrIssue(ctx context.Context) (*dotdir.SessionState, error) {
	fmt.Fprintln(c.out)

	if !c.fresh {
		session, err := c.ddm.LoadSessionState(c.configDir)
		if err != nil {
			return nil, fmt.Errorf("loading session state: %w", err)
		}

		if session != nil && session.APITarget == c.apiTarget && (c.anyPreset || c.preset == session.Preset) {
			turns, err := c.client.History(ctx, session.ConversationKey, false)
			switch {
			case err == nil:
				fmt.Fprintf(c.out, "  %s Resuming %s %s\n",
					cliui.SuccessMark,
					cliui.NameStyle.Render(session.Title),
					cliui.DimStyle.Render(fmt.Sprintf("(%d turns)", len(turns))),
				)
				fmt.Fprintf(c.out, "  %s %s\n\n",
					cliui.KeyStyle.Render("Preset:"),
					cliui.NameStyle.Render(session.Preset),
				)
				return session, nil
			case client.IsKind(err, orchestrator.KindInvalidConversationKey):
				c.logger.Debug("saved conversation is gone, starting a new one",
					zap.String("conversation_key", session.ConversationKey),
				)
			default:
				return nil, err
			}
		}
	}

	return c.issue(ctx, c.preset)
}

func (c *chatCommander) issue(ctx context.Context, name string) (*dotdir.SessionState, error) {
	var issued *client.Issued
	err := cliui.Step(c.out, "Starting conversation", func() error {
		var err error
		issued, err = c.client.Issue(ctx, client.IssueRequest{
			Preset:        name,
			Title:         c.title,
			PreferredLang: c.lang,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(c.out, "  %s New conversation %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(issued.Title),
	)
	fmt.Fprintf(c.out, "  %s %s %s\n\n",
		cliui.KeyStyle.Render("Preset:"),
		cliui.NameStyle.Render(issued.Preset),
		cliui.DimStyle.Render("("+issued.Model+")"),
	)

	session := &dotdir.SessionState{
		ConversationKey: issued.Key,
		Preset:          issued.Preset,
		APITarget:       c.apiTarget,
		Title:           issued.Title,
		UpdatedAt:       time.Now().UTC(),
	}
	if err := c.ddm.SaveSession(session, c.configDir); err != nil {
		c.logger.Debug("could not save session", zap.Error(err))
	}
	return session, nil
}

func (c *chatCommander) printHistory(ctx context.Context, session *dotdir.SessionState) {
	turns, err := c.client.History(ctx, session.ConversationKey, false)
	if err != nil {
		fmt.Fprintf(c.out, "  %s %v\n\n", cliui.FailMark, err)
		return
	}

	// The first turn is the handshake carrying the preset instructions.
	if len(turns) > 0 {
		turns = turns[1:]
	}
	if len(turns) == 0 {
		fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("No questions yet."))
		return
	}

	for _, t := range turns {
		fmt.Fprintf(c.out, "  %s %s\n", cliui.DimStyle.Render(t.CreatedAt.Local().Format(time.Kitchen)), t.Question)
		fmt.Fprintf(c.out, "  %s\n", cliui.StepStyle.Render(utils.Truncate(strings.ReplaceAll(t.Response, "\n", " "), 120)))
	}
	fmt.Fprintln(c.out)
}

// question sends JSON input as a JSON value in structured mode.
func (c *chatCommander) question(input string) any {
	if c.structured && json.Valid([]byte(input)) {
		return json.RawMessage(input)
	}
	return input
}

func (c *chatCommander) render(answer *client.Answer) string {
	rendered, err := cliui.RenderReply(answer.Text(), answer.IsStructured(), terminalWidth())
	if err != nil {
		c.logger.Debug("could not render reply", zap.Error(err))
	}
	return rendered
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return min(width-4, 120)
}
