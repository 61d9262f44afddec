package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"garment-studio/internal/editor"
	"garment-studio/internal/studio/service"

	"github.com/chzyer/readline"
)

// ErrExit — пользователь ввёл exit/quit.
var ErrExit = errors.New("exit requested")

// CLI — локальный редактор поверх одной сессии studio.
type CLI struct {
	Studio   *service.Studio
	EditorID string
	UserID   string
	RL       *readline.Instance
	Out      io.Writer
	Prompt   string
}

func NewCLI(studio *service.Studio, userID string, rl *readline.Instance, out io.Writer) *CLI {
	c := &CLI{
		Studio:   studio,
		EditorID: studio.Editors().Open(userID).ID,
		UserID:   userID,
		RL:       rl,
		Out:      out,
	}
	c.UpdatePrompt()
	return c
}

// Run читает и выполняет одну строку.
func (c *CLI) Run() error {
	line, err := c.RL.Readline()
	if err != nil {
		return err
	}
	return c.ExecuteLine(line)
}

func (c *CLI) ExecuteLine(line string) error {
	line = strings.TrimSpace(line)
	if len(line) == 0 || strings.HasPrefix(line, "#") {
		return nil
	}
	err := c.ExecuteCommand(ParseArgs(line))
	c.UpdatePrompt()
	return err
}

// ExecuteScript выполняет файл команд построчно; первая ошибка прерывает
// выполнение с номером строки.
func (c *CLI) ExecuteScript(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open script: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := c.ExecuteLine(scanner.Text()); err != nil {
			if errors.Is(err, ErrExit) {
				return nil
			}
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	return scanner.Err()
}

// ParseArgs делит строку по пробелам; двойные кавычки объединяют слова.
func ParseArgs(input string) []string {
	var args []string
	var currentArg strings.Builder
	inQuotes := false
	quoted := false

	for _, char := range input {
		switch {
		case char == '"':
			inQuotes = !inQuotes
			quoted = true
		case char == ' ' && !inQuotes:
			if currentArg.Len() > 0 || quoted {
				args = append(args, currentArg.String())
				currentArg.Reset()
				quoted = false
			}
		default:
			currentArg.WriteRune(char)
		}
	}

	if currentArg.Len() > 0 || quoted {
		args = append(args, currentArg.String())
	}
	return args
}

func (c *CLI) ExecuteCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("no command provided")
	}

	handler, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command: %s", args[0])
	}
	return handler(c, args[1:])
}

// UpdatePrompt показывает изделие, активную сторону и текущий проект.
func (c *CLI) UpdatePrompt() {
	prompt := "> "
	_ = c.do(func(ed *service.Editor) error {
		title := "new"
		if ed.ProjectID != "" {
			title = short(editor.ObjectID(ed.ProjectID))
		}
		prompt = fmt.Sprintf("%s [%s] %s > ", ed.Garment.Type, ed.Session.ActiveSide(), title)
		return nil
	})
	c.Prompt = prompt
	if c.RL != nil {
		c.RL.SetPrompt(prompt)
	}
}

func (c *CLI) printHelp(command string) {
	if command == "" {
		names := make([]string, 0, len(commandHelp))
		for name := range commandHelp {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(c.Out, "Available commands:")
		for _, name := range names {
			fmt.Fprintf(c.Out, "  %s\n", name)
		}
		fmt.Fprintln(c.Out, "\nUse 'help <command>' for more information about a specific command.")
	} else if help, ok := commandHelp[command]; ok {
		fmt.Fprintln(c.Out, help)
	} else {
		fmt.Fprintf(c.Out, "Unknown command: %s\n", command)
	}
}

func (c *CLI) do(fn func(ed *service.Editor) error) error {
	return c.Studio.Editors().Do(c.EditorID, c.UserID, fn)
}

// session выполняет fn над сессией редактора.
func (c *CLI) session(fn func(s *editor.Session) error) error {
	return c.do(func(ed *service.Editor) error { return fn(ed.Session) })
}
