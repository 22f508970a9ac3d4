package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"

	"github.com/Joseda-hg/todolab/internal/calendar"
	"github.com/Joseda-hg/todolab/internal/model"
	"github.com/Joseda-hg/todolab/internal/schedule"
	"github.com/Joseda-hg/todolab/internal/service"
)

const (
	viewHeader      = "header"
	viewFooter      = "footer"
	viewAgenda      = "agenda"
	viewUnscheduled = "unscheduled"
	viewHistory     = "history"
	viewForm        = "form"
	viewHelp        = "help"
)

type UI struct {
	tasks *service.TaskService
	gui   *gocui.Gui
	now   func() time.Time

	mode   schedule.Kind
	anchor time.Time
	period schedule.DateRange

	agenda        []agendaLine
	agendaEntries []calendar.Entry
	unscheduled   []model.Task
	byID          map[int64]model.Task
	history       []model.HistoryEntry

	selectedAgenda      int
	selectedUnscheduled int
	focus               string

	form       *formState
	formEditor *formEditor
	helpActive bool
	status     string
}

type formState struct {
	taskID int64
	fields []formField
	index  int
}

type formEditor struct {
	ui *UI
}

func newUI(tasks *service.TaskService, now func() time.Time) *UI {
	ui := &UI{
		tasks:  tasks,
		now:    now,
		mode:   schedule.Week,
		anchor: schedule.Midnight(now()),
		focus:  viewAgenda,
		byID:   map[int64]model.Task{},
	}
	ui.formEditor = &formEditor{ui: ui}
	return ui
}

// Run opens the terminal calendar on the current week and blocks until the
// user quits.
func Run(tasks *service.TaskService) error {
	gui, err := gocui.NewGui(gocui.NewGuiOpts{OutputMode: gocui.OutputNormal})
	if err != nil {
		return err
	}
	defer gui.Close()

	ui := newUI(tasks, time.Now)
	ui.gui = gui

	gui.SetManagerFunc(ui.layout)
	if err := ui.bindKeys(gui); err != nil {
		return err
	}
	if err := ui.loadTasks(); err != nil {
		return err
	}

	if err := gui.MainLoop(); err != nil && !goerrors.Is(err, gocui.ErrQuit) {
		return err
	}

	return nil
}

func (u *UI) bindKeys(gui *gocui.Gui) error {
	if err := gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, u.quit); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'q', gocui.ModNone, u.quit); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'r', gocui.ModNone, u.reload); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'd', gocui.ModNone, u.dayMode); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'w', gocui.ModNone, u.weekMode); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'm', gocui.ModNone, u.monthMode); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'h', gocui.ModNone, u.prevPeriod); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", gocui.KeyArrowLeft, gocui.ModNone, u.prevPeriod); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'l', gocui.ModNone, u.nextPeriod); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", gocui.KeyArrowRight, gocui.ModNone, u.nextPeriod); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 't', gocui.ModNone, u.today); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'a', gocui.ModNone, u.addTask); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'e', gocui.ModNone, u.editTask); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'x', gocui.ModNone, u.deleteTask); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '?', gocui.ModNone, u.toggleHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", gocui.KeyTab, gocui.ModNone, u.switchFocus); err != nil {
		return err
	}
	for _, name := range []string{viewAgenda, viewUnscheduled} {
		if err := gui.SetKeybinding(name, gocui.KeyArrowDown, gocui.ModNone, u.moveDown); err != nil {
			return err
		}
		if err := gui.SetKeybinding(name, 'j', gocui.ModNone, u.moveDown); err != nil {
			return err
		}
		if err := gui.SetKeybinding(name, gocui.KeyArrowUp, gocui.ModNone, u.moveUp); err != nil {
			return err
		}
		if err := gui.SetKeybinding(name, 'k', gocui.ModNone, u.moveUp); err != nil {
			return err
		}
		if err := gui.SetKeybinding(name, gocui.KeyEnter, gocui.ModNone, u.editTask); err != nil {
			return err
		}
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEnter, gocui.ModNone, u.submitFormNow); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyTab, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyBacktab, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowDown, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowUp, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEsc, gocui.ModNone, u.cancelForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, gocui.KeyEsc, gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, '?', gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	return nil
}

func (u *UI) layout(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	if maxX <= 0 || maxY <= 0 {
		return nil
	}

	headerView, err := gui.SetView(viewHeader, 0, 0, maxX-1, 2, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	headerView.Frame = false
	u.renderHeader(headerView)

	footerY1 := max(maxY-1, 4)
	footerY0 := footerY1 - 2
	footerView, err := gui.SetView(viewFooter, 0, footerY0, maxX-1, footerY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	footerView.Frame = false
	footerView.FgColor = gocui.ColorDefault | gocui.AttrDim
	u.renderFooter(footerView)

	bodyTop := 2
	bodyBottom := footerY0 - 1
	if bodyBottom <= bodyTop {
		return nil
	}

	splitX := max(maxX*3/5, 30)
	rightX0 := min(splitX+1, maxX-2)
	middleY := bodyTop + (bodyBottom-bodyTop)/2

	agendaView, err := gui.SetView(viewAgenda, 0, bodyTop, splitX, bodyBottom, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	agendaView.Title = "Agenda"
	applyViewStyle(agendaView, u.focus == viewAgenda)
	u.renderAgenda(agendaView)

	unscheduledView, err := gui.SetView(viewUnscheduled, rightX0, bodyTop, maxX-1, middleY, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		unscheduledView.Title = "Unscheduled"
		unscheduledView.TitleColor = gocui.ColorYellow
	}
	applyViewStyle(unscheduledView, u.focus == viewUnscheduled)
	u.renderUnscheduled(unscheduledView)

	historyView, err := gui.SetView(viewHistory, rightX0, middleY+1, maxX-1, bodyBottom, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		historyView.Title = "History"
		historyView.Wrap = true
	}
	u.renderHistory(historyView)

	if u.form != nil {
		if err := u.showForm(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewForm)
	}

	if u.helpActive {
		if err := u.showHelp(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewHelp)
	}

	if gui.CurrentView() == nil {
		_, _ = gui.SetCurrentView(u.focus)
	}
	gui.Cursor = u.form != nil

	return nil
}

func (u *UI) loadTasks() error {
	ctx := context.Background()
	period, err := schedule.Calculate(u.mode, u.anchor.Format(u.mode.Layout()))
	if err != nil {
		return err
	}

	tasks, err := u.tasks.ListInRange(ctx, period)
	if err != nil {
		return err
	}
	unscheduled, err := u.tasks.ListUnscheduled(ctx)
	if err != nil {
		return err
	}

	var days []calendar.DaySchedule
	switch u.mode {
	case schedule.Day:
		days = []calendar.DaySchedule{calendar.Day(u.anchor, tasks)}
	case schedule.Week:
		days = calendar.Week(u.anchor, tasks)
	default:
		for _, day := range period.Days() {
			days = append(days, calendar.Day(day, tasks))
		}
	}

	u.period = period
	u.agenda, u.agendaEntries = buildAgenda(days, u.mode == schedule.Month)
	u.unscheduled = unscheduled
	u.byID = make(map[int64]model.Task, len(tasks)+len(unscheduled))
	for _, task := range tasks {
		u.byID[task.ID] = task
	}
	for _, task := range unscheduled {
		u.byID[task.ID] = task
	}

	if u.selectedAgenda >= len(u.agendaEntries) {
		u.selectedAgenda = max(len(u.agendaEntries)-1, 0)
	}
	if u.selectedUnscheduled >= len(u.unscheduled) {
		u.selectedUnscheduled = max(len(u.unscheduled)-1, 0)
	}

	return u.loadHistory()
}

func (u *UI) loadHistory() error {
	selected := u.selectedTask()
	if selected == nil {
		u.history = nil
		return nil
	}

	history, err := u.tasks.History(context.Background(), selected.ID)
	if err != nil {
		return err
	}
	u.history = history
	return nil
}

func (u *UI) renderHeader(view *gocui.View) {
	view.Clear()
	last := u.period.End.AddDate(0, 0, -1)
	label := u.period.Start.Format("Mon Jan 2, 2006")
	switch u.mode {
	case schedule.Week:
		label = u.period.Start.Format("Jan 2") + " - " + last.Format("Jan 2, 2006")
	case schedule.Month:
		label = u.period.Start.Format("January 2006")
	}
	fmt.Fprintf(view, "todolab | %s | %s", strings.ToLower(u.mode.String()), label)
}

func (u *UI) renderFooter(view *gocui.View) {
	view.Clear()
	fmt.Fprintln(view, "d/w/m mode | h/l prev/next | t today | a add | e edit | x delete | tab pane | r reload | ? help | q quit")
	if u.status != "" {
		fmt.Fprint(view, u.status)
	}
}

func (u *UI) renderAgenda(view *gocui.View) {
	view.Clear()
	focused := u.focus == viewAgenda
	today := schedule.Midnight(u.now())
	entryIndex := 0
	cursorY := 0
	for y, line := range u.agenda {
		if line.Entry == nil {
			fmt.Fprintln(view, formatDayHeading(line.Day, today))
			continue
		}
		prefix := " "
		if entryIndex == u.selectedAgenda {
			prefix = "*"
			if focused {
				prefix = ">"
			}
			cursorY = y
		}
		fmt.Fprintf(view, "%s %s\n", prefix, formatEntrySummary(*line.Entry, line.Day))
		entryIndex++
	}
	if len(u.agenda) == 0 {
		fmt.Fprintln(view, "nothing scheduled")
	}
	if focused {
		view.SetCursor(0, cursorY)
	}
}

func (u *UI) renderUnscheduled(view *gocui.View) {
	view.Clear()
	focused := u.focus == viewUnscheduled
	for i, task := range u.unscheduled {
		prefix := " "
		if i == u.selectedUnscheduled {
			prefix = "*"
			if focused {
				prefix = ">"
			}
		}
		fmt.Fprintf(view, "%s %s\n", prefix, formatTaskSummary(task))
	}
	if focused && len(u.unscheduled) > 0 {
		view.SetCursor(0, u.selectedUnscheduled)
	}
}

func (u *UI) renderHistory(view *gocui.View) {
	view.Clear()
	for _, entry := range u.history {
		fmt.Fprintf(view, "%s %s: %s\n", entry.CreatedAt.Format("01-02 15:04"), entry.EventType, entry.Details)
	}
}

func (u *UI) selectedTask() *model.Task {
	var id int64
	switch u.focus {
	case viewUnscheduled:
		if u.selectedUnscheduled < 0 || u.selectedUnscheduled >= len(u.unscheduled) {
			return nil
		}
		id = u.unscheduled[u.selectedUnscheduled].ID
	default:
		if u.selectedAgenda < 0 || u.selectedAgenda >= len(u.agendaEntries) {
			return nil
		}
		id = u.agendaEntries[u.selectedAgenda].ID
	}
	task, ok := u.byID[id]
	if !ok {
		return nil
	}
	return &task
}

func (u *UI) switchFocus(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.focus == viewAgenda {
		u.focus = viewUnscheduled
	} else {
		u.focus = viewAgenda
	}
	if gui != nil {
		_, _ = gui.SetCurrentView(u.focus)
	}
	return u.loadHistory()
}

func (u *UI) moveDown(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch u.focus {
	case viewUnscheduled:
		if u.selectedUnscheduled < len(u.unscheduled)-1 {
			u.selectedUnscheduled++
			return u.loadHistory()
		}
	default:
		if u.selectedAgenda < len(u.agendaEntries)-1 {
			u.selectedAgenda++
			return u.loadHistory()
		}
	}
	return nil
}

func (u *UI) moveUp(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch u.focus {
	case viewUnscheduled:
		if u.selectedUnscheduled > 0 {
			u.selectedUnscheduled--
			return u.loadHistory()
		}
	default:
		if u.selectedAgenda > 0 {
			u.selectedAgenda--
			return u.loadHistory()
		}
	}
	return nil
}

func (u *UI) dayMode(gui *gocui.Gui, _ *gocui.View) error {
	return u.setMode(schedule.Day)
}

func (u *UI) weekMode(gui *gocui.Gui, _ *gocui.View) error {
	return u.setMode(schedule.Week)
}

func (u *UI) monthMode(gui *gocui.Gui, _ *gocui.View) error {
	return u.setMode(schedule.Month)
}

func (u *UI) setMode(mode schedule.Kind) error {
	if u.inputActive() {
		return nil
	}
	u.mode = mode
	u.selectedAgenda = 0
	return u.loadTasks()
}

func (u *UI) prevPeriod(_ *gocui.Gui, _ *gocui.View) error {
	return u.shift(-1)
}

func (u *UI) nextPeriod(_ *gocui.Gui, _ *gocui.View) error {
	return u.shift(1)
}

// shift moves the anchor by whole periods. Months step from the first of
// the month so Jan 31 does not roll over into March.
func (u *UI) shift(delta int) error {
	if u.inputActive() {
		return nil
	}
	switch u.mode {
	case schedule.Day:
		u.anchor = u.anchor.AddDate(0, 0, delta)
	case schedule.Week:
		u.anchor = u.anchor.AddDate(0, 0, 7*delta)
	default:
		first := u.anchor.AddDate(0, 0, 1-u.anchor.Day())
		u.anchor = first.AddDate(0, delta, 0)
	}
	u.selectedAgenda = 0
	return u.loadTasks()
}

func (u *UI) today(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.anchor = schedule.Midnight(u.now())
	u.selectedAgenda = 0
	return u.loadTasks()
}

func (u *UI) reload(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.status = ""
	return u.loadTasks()
}

func (u *UI) toggleHelp(_ *gocui.Gui, _ *gocui.View) error {
	if u.form != nil {
		return nil
	}
	u.helpActive = !u.helpActive
	return nil
}

func (u *UI) closeHelp(gui *gocui.Gui, _ *gocui.View) error {
	u.helpActive = false
	u.restoreFocus(gui, viewHelp)
	return nil
}

func (u *UI) showHelp(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(50, maxX/2)
	height := 16
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewHelp, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Help"
		view.Wrap = true
	}
	view.Clear()
	fmt.Fprint(view, helpText())
	_, _ = gui.SetCurrentView(viewHelp)
	return nil
}

func (u *UI) addTask(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	fields := buildFormFields(nil)
	if u.focus == viewAgenda {
		start := u.anchor.Add(9 * time.Hour)
		fields[fieldStart].Value = formatFormTime(&start, false)
	}
	u.form = &formState{fields: fields}
	return nil
}

func (u *UI) editTask(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	selected := u.selectedTask()
	if selected == nil {
		return nil
	}
	u.form = &formState{taskID: selected.ID, fields: buildFormFields(selected)}
	return nil
}

func (u *UI) deleteTask(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	selected := u.selectedTask()
	if selected == nil {
		return nil
	}
	if err := u.tasks.Delete(context.Background(), selected.ID); err != nil {
		u.status = err.Error()
		return nil
	}
	u.status = fmt.Sprintf("deleted %q", selected.Title)
	return u.loadTasks()
}

func (u *UI) showForm(gui *gocui.Gui) error {
	if u.form == nil {
		return nil
	}

	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := min(10, max(8, maxY/2))
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewForm, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	view.Title = "New Task"
	if u.form.taskID != 0 {
		view.Title = "Edit Task"
	}
	view.Editable = true
	view.KeybindOnEdit = true
	view.Editor = u.formEditor
	u.renderForm(view)
	_, _ = gui.SetCurrentView(viewForm)
	return nil
}

func (u *UI) submitFormNow(gui *gocui.Gui, _ *gocui.View) error {
	if u.form == nil {
		return nil
	}

	input, err := parseFormFields(u.form.fields)
	if err != nil {
		u.status = err.Error()
		return nil
	}

	ctx := context.Background()
	if u.form.taskID == 0 {
		_, err = u.tasks.Create(ctx, input)
	} else {
		_, err = u.tasks.Update(ctx, u.form.taskID, input)
	}
	if err != nil {
		u.status = err.Error()
		return nil
	}

	u.form = nil
	u.status = ""
	u.restoreFocus(gui, viewForm)
	return u.loadTasks()
}

func (u *UI) cancelForm(gui *gocui.Gui, _ *gocui.View) error {
	u.form = nil
	u.restoreFocus(gui, viewForm)
	return nil
}

func (u *UI) nextFormField(_ *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index < len(u.form.fields)-1 {
		u.form.index++
	}
	u.renderForm(view)
	return nil
}

func (u *UI) prevFormField(_ *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index > 0 {
		u.form.index--
	}
	u.renderForm(view)
	return nil
}

func (u *UI) renderForm(view *gocui.View) {
	if u.form == nil || view == nil {
		return
	}
	view.Clear()
	for index, field := range u.form.fields {
		prefix := "  "
		if index == u.form.index {
			prefix = "> "
		}
		fmt.Fprintf(view, "%s%s: %s\n", prefix, field.Label, field.Value)
	}
	current := u.form.fields[u.form.index]
	cursorX := len([]rune(current.Label)) + len([]rune(current.Value)) + 4
	view.SetCursor(cursorX, u.form.index)
}

func (e *formEditor) Edit(view *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	ui := e.ui
	if ui == nil || ui.form == nil || view == nil {
		return false
	}
	field := &ui.form.fields[ui.form.index]

	if isAllDayField(field.Label) {
		switch key {
		case gocui.KeySpace, gocui.KeyArrowLeft, gocui.KeyArrowRight:
			field.Value = toggleAllDay(field.Value)
		}
		ui.renderForm(view)
		return true
	}

	switch key {
	case gocui.KeyBackspace, gocui.KeyBackspace2:
		runes := []rune(field.Value)
		if len(runes) > 0 {
			field.Value = string(runes[:len(runes)-1])
		}
	case gocui.KeySpace:
		field.Value += " "
	case gocui.KeyCtrlU:
		field.Value = ""
	}

	if ch != 0 && ch != '\n' && ch != '\r' && mod == 0 {
		field.Value += string(ch)
	}

	ui.renderForm(view)
	return true
}

// restoreFocus drops a popup view and returns focus to the active pane.
// Handlers are also driven without a gui in tests.
func (u *UI) restoreFocus(gui *gocui.Gui, popup string) {
	if gui == nil {
		return
	}
	_ = gui.DeleteView(popup)
	_, _ = gui.SetCurrentView(u.focus)
}

func (u *UI) inputActive() bool {
	return u.form != nil || u.helpActive
}

func (u *UI) quit(_ *gocui.Gui, _ *gocui.View) error {
	return gocui.ErrQuit
}

func helpText() string {
	return strings.Join([]string{
		"Calendar:",
		"  d day | w week | m month",
		"  h/l or left/right previous/next period | t today",
		"",
		"Tasks:",
		"  tab switch agenda/unscheduled | j/k or arrows move",
		"  a add | e or enter edit | x delete",
		"",
		"Form:",
		"  tab/arrows next field | space toggles all day",
		"  ctrl+u clear field | enter save | esc cancel",
		"",
		"Other:",
		"  r reload | ? help | q quit",
	}, "\n")
}

func applyViewStyle(view *gocui.View, focused bool) {
	view.Frame = true
	view.Highlight = focused
	view.SelBgColor = gocui.ColorBlue
	view.SelFgColor = gocui.ColorBlack
	if focused {
		view.FrameColor = gocui.ColorCyan
		view.TitleColor = gocui.ColorCyan
	} else {
		view.FrameColor = gocui.ColorDefault
	}
}
