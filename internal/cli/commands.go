package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"garment-studio/internal/editor"
	"garment-studio/internal/studio/models"
	"garment-studio/internal/studio/service"
)

type commandFunc func(c *CLI, args []string) error

var commands map[string]commandFunc

func init() {
	commands = map[string]commandFunc{
		"help":       (*CLI).handleHelp,
		"text":       (*CLI).handleText,
		"image":      (*CLI).handleImage,
		"dup":        (*CLI).handleDuplicate,
		"del":        (*CLI).handleDelete,
		"edit":       (*CLI).handleEdit,
		"move":       (*CLI).handleMove,
		"up":         (*CLI).handleUp,
		"down":       (*CLI).handleDown,
		"side":       (*CLI).handleSide,
		"layers":     (*CLI).handleLayers,
		"select":     (*CLI).handleSelect,
		"lock":       (*CLI).handleLock,
		"undo":       (*CLI).handleUndo,
		"redo":       (*CLI).handleRedo,
		"zoom":       (*CLI).handleZoom,
		"reset-view": (*CLI).handleResetView,
		"garment":    (*CLI).handleGarment,
		"save":       (*CLI).handleSave,
		"projects":   (*CLI).handleProjects,
		"load":       (*CLI).handleLoad,
		"new":        (*CLI).handleNew,
		"export-svg": (*CLI).handleExportSVG,
		"export-png": (*CLI).handleExportPNG,
		"exit":       (*CLI).handleExit,
		"quit":       (*CLI).handleExit,
	}
}

var commandHelp = map[string]string{
	"help":       "help [command] - Show help",
	"text":       "text <content> - Add a text object to the active side",
	"image":      "image <file|url> - Upload a local picture or place one by URL",
	"dup":        "dup <id> - Duplicate an object",
	"del":        "del <id> - Delete an object",
	"edit":       "edit <id> <content> - Replace the content of a text object",
	"move":       "move <id> <x> <y> - Move an object",
	"up":         "up <id> - Bring an object one step forward",
	"down":       "down <id> - Send an object one step backward",
	"side":       "side front|back - Switch the active side",
	"layers":     "layers [all] - List layers of the active side, top first",
	"select":     "select <id>|none - Select an object or clear the selection",
	"lock":       "lock <id> on|off - Lock or unlock an object",
	"undo":       "undo - Step back in history",
	"redo":       "redo - Step forward in history",
	"zoom":       "zoom <factor> - Multiply the zoom by factor",
	"reset-view": "reset-view - Reset zoom and pan",
	"garment":    "garment [type] [color] [size] - Show or change the garment",
	"save":       "save <title> [--new] - Save the design as a project",
	"projects":   "projects - List saved projects",
	"load":       "load <id> - Load a saved project",
	"new":        "new - Start an empty design",
	"export-svg": "export-svg <file> [side] - Render a side to SVG",
	"export-png": "export-png <file> [side] - Render a side to PNG",
	"exit":       "exit - Leave the designer",
}

func (c *CLI) handleHelp(args []string) error {
	if len(args) > 0 {
		c.printHelp(args[0])
	} else {
		c.printHelp("")
	}
	return nil
}

func (c *CLI) handleExit(args []string) error {
	return fmt.Errorf("%w: %w", ErrExit, io.EOF)
}

// ============================================================
// Objects
// ============================================================

func (c *CLI) handleText(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: text <content>")
	}
	var id editor.ObjectID
	err := c.session(func(s *editor.Session) error {
		var err error
		id, err = s.AddText(strings.Join(args, " "))
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "Added text %s\n", short(id))
	return nil
}

func (c *CLI) handleImage(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: image <file|url>")
	}
	src := args[0]

	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		var id editor.ObjectID
		err := c.session(func(s *editor.Session) error {
			var err error
			id, err = s.AddImage(src)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.Out, "Added image %s\n", short(id))
		return nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	id, url, err := c.Studio.UploadImage(context.Background(), c.EditorID, c.UserID, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "Uploaded image %s -> %s\n", short(id), url)
	return nil
}

func (c *CLI) handleDuplicate(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: dup <id>")
	}
	var copyID editor.ObjectID
	err := c.session(func(s *editor.Session) error {
		id, err := resolveID(s, args[0])
		if err != nil {
			return err
		}
		copyID, err = s.Duplicate(id)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "Duplicated as %s\n", short(copyID))
	return nil
}

func (c *CLI) handleDelete(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: del <id>")
	}
	return c.withObject(args[0], (*editor.Session).Delete)
}

func (c *CLI) handleEdit(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: edit <id> <content>")
	}
	content := strings.Join(args[1:], " ")
	return c.withObject(args[0], func(s *editor.Session, id editor.ObjectID) error {
		return s.UpdateText(id, content)
	})
}

func (c *CLI) handleMove(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: move <id> <x> <y>")
	}
	x, errX := strconv.ParseFloat(args[1], 64)
	y, errY := strconv.ParseFloat(args[2], 64)
	if errX != nil || errY != nil {
		return fmt.Errorf("invalid coordinates: %s %s", args[1], args[2])
	}
	return c.withObject(args[0], func(s *editor.Session, id editor.ObjectID) error {
		obj, _, _ := s.Object(id)
		g := obj.Geometry
		g.X, g.Y = x, y
		if err := s.Drag(id, g); err != nil {
			return err
		}
		return s.EndDrag()
	})
}

func (c *CLI) handleUp(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: up <id>")
	}
	return c.withObject(args[0], (*editor.Session).BringForward)
}

func (c *CLI) handleDown(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: down <id>")
	}
	return c.withObject(args[0], (*editor.Session).SendBackward)
}

func (c *CLI) handleLock(args []string) error {
	if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
		return fmt.Errorf("usage: lock <id> on|off")
	}
	locked := args[1] == "on"
	return c.withObject(args[0], func(s *editor.Session, id editor.ObjectID) error {
		return s.SetLocked(id, locked)
	})
}

func (c *CLI) handleSelect(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: select <id>|none")
	}
	if args[0] == "none" {
		return c.session(func(s *editor.Session) error {
			s.ClearSelection()
			return nil
		})
	}
	return c.withObject(args[0], (*editor.Session).Select)
}

// withObject находит объект по префиксу id и применяет к нему fn.
func (c *CLI) withObject(prefix string, fn func(s *editor.Session, id editor.ObjectID) error) error {
	return c.session(func(s *editor.Session) error {
		id, err := resolveID(s, prefix)
		if err != nil {
			return err
		}
		return fn(s, id)
	})
}

// resolveID принимает полный id или его однозначный префикс.
func resolveID(s *editor.Session, prefix string) (editor.ObjectID, error) {
	var found []editor.ObjectID
	for _, l := range s.AllLayers() {
		if string(l.ID) == prefix {
			return l.ID, nil
		}
		if strings.HasPrefix(string(l.ID), prefix) {
			found = append(found, l.ID)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("object %s: %w", prefix, editor.ErrNotFound)
	case 1:
		return found[0], nil
	}
	return "", fmt.Errorf("ambiguous id %s: %d objects match", prefix, len(found))
}

// ============================================================
// Side / Layers / History / View
// ============================================================

func (c *CLI) handleSide(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: side front|back")
	}
	side, err := editor.ParseSide(args[0])
	if err != nil {
		return err
	}
	return c.session(func(s *editor.Session) error { return s.SetActiveSide(side) })
}

func (c *CLI) handleLayers(args []string) error {
	all := len(args) > 0 && args[0] == "all"
	return c.session(func(s *editor.Session) error {
		layers := s.Layers()
		if all {
			layers = s.AllLayers()
		}
		if len(layers) == 0 {
			fmt.Fprintln(c.Out, "No layers")
			return nil
		}
		selected, _ := s.Selection()
		for _, l := range layers {
			mark := " "
			if l.ID == selected {
				mark = "*"
			}
			flags := ""
			if l.Locked {
				flags += " [locked]"
			}
			if !l.Visible {
				flags += " [hidden]"
			}
			fmt.Fprintf(c.Out, "%s %s  %-5s %-5s %q%s\n", mark, short(l.ID), l.Side, l.Type, l.Title, flags)
		}
		return nil
	})
}

func (c *CLI) handleUndo(args []string) error {
	return c.step((*editor.Session).Undo, "Nothing to undo")
}

func (c *CLI) handleRedo(args []string) error {
	return c.step((*editor.Session).Redo, "Nothing to redo")
}

func (c *CLI) step(fn func(s *editor.Session) (bool, error), nothing string) error {
	return c.session(func(s *editor.Session) error {
		moved, err := fn(s)
		if err != nil {
			return err
		}
		if !moved {
			fmt.Fprintln(c.Out, nothing)
		}
		return nil
	})
}

func (c *CLI) handleZoom(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: zoom <factor>")
	}
	factor, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid zoom factor: %s", args[0])
	}
	return c.session(func(s *editor.Session) error {
		if err := s.SetZoom(factor); err != nil {
			return err
		}
		fmt.Fprintf(c.Out, "Zoom: %.2f\n", s.Zoom())
		return nil
	})
}

func (c *CLI) handleResetView(args []string) error {
	return c.session(func(s *editor.Session) error {
		s.ResetView()
		return nil
	})
}

// ============================================================
// Garment / Projects
// ============================================================

func (c *CLI) handleGarment(args []string) error {
	var current models.Garment
	if err := c.do(func(ed *service.Editor) error {
		current = ed.Garment
		return nil
	}); err != nil {
		return err
	}
	if len(args) == 0 {
		fmt.Fprintf(c.Out, "%s / %s / %s\n", current.Type, current.Color, current.Size)
		return nil
	}

	next := current
	fields := []*string{&next.Type, &next.Color, &next.Size}
	for i, arg := range args {
		if i >= len(fields) {
			return fmt.Errorf("usage: garment [type] [color] [size]")
		}
		*fields[i] = arg
	}
	return c.Studio.SelectGarment(c.EditorID, c.UserID, next)
}

func (c *CLI) handleSave(args []string) error {
	req := service.SaveRequest{}
	var title []string
	for _, arg := range args {
		if arg == "--new" {
			req.AsNew = true
			continue
		}
		title = append(title, arg)
	}
	req.Title = strings.Join(title, " ")

	project, err := c.Studio.Save(context.Background(), c.EditorID, c.UserID, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "Saved %q as %s\n", project.Title, project.ID)
	return nil
}

func (c *CLI) handleProjects(args []string) error {
	list, err := c.Studio.ListProjects(context.Background(), c.UserID)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(c.Out, "No projects")
		return nil
	}
	for _, p := range list {
		fmt.Fprintf(c.Out, "%s  %-24q %s/%s/%s  %s\n", p.ID, p.Title, p.Garment.Type, p.Garment.Color, p.Garment.Size, p.UpdatedAt)
	}
	return nil
}

func (c *CLI) handleLoad(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: load <id>")
	}
	state, err := c.Studio.Load(context.Background(), c.EditorID, c.UserID, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "Loaded %d objects\n", state.ObjectCount)
	return nil
}

func (c *CLI) handleNew(args []string) error {
	_, err := c.Studio.NewProject(c.EditorID, c.UserID)
	return err
}

// ============================================================
// Export
// ============================================================

func (c *CLI) handleExportSVG(args []string) error {
	return c.export("svg", args)
}

func (c *CLI) handleExportPNG(args []string) error {
	return c.export("png", args)
}

func (c *CLI) export(format string, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: export-%s <file> [side]", format)
	}
	var side editor.Side
	if len(args) == 2 {
		var err error
		if side, err = editor.ParseSide(args[1]); err != nil {
			return err
		}
	}

	data, _, err := c.Studio.Render(context.Background(), c.EditorID, c.UserID, side, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", args[0], err)
	}
	fmt.Fprintf(c.Out, "Exported %s (%d bytes)\n", args[0], len(data))
	return nil
}

// Describe переводит ошибки редактора в короткое сообщение для терминала.
func Describe(err error) string {
	var verr *editor.ValidationError
	var terr *service.TransientError
	switch {
	case errors.As(err, &verr):
		return fmt.Sprintf("invalid %s: %s", verr.Field, verr.Reason)
	case errors.As(err, &terr):
		return fmt.Sprintf("%s failed, try again", terr.Op)
	case errors.Is(err, editor.ErrLocked):
		return "object is locked"
	case errors.Is(err, service.ErrStale):
		return "design changed while loading, load again"
	}
	return err.Error()
}

func short(id editor.ObjectID) string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}
