package canvas

import "strings"

// Modifier is a bitmask of held modifier keys. ModPrimary is ctrl on
// Linux/Windows and cmd on macOS; the distinction is resolved before the
// chord reaches the dispatcher.
type Modifier uint8

const (
	ModNone    Modifier = 0
	ModPrimary Modifier = 1 << iota
	ModShift
	ModAlt
)

// KeyChord is a normalised (modifier, key) combination. Key is lowercase;
// named keys use their DOM names ("escape", "delete", "backspace").
type KeyChord struct {
	Mod Modifier
	Key string
}

// Action is a shortcut-dispatchable canvas operation.
type Action string

const (
	ActionDuplicate     Action = "duplicate"
	ActionDelete        Action = "delete"
	ActionGroup         Action = "group"
	ActionUngroup       Action = "ungroup"
	ActionCopy          Action = "copy"
	ActionPaste         Action = "paste"
	ActionUndo          Action = "undo"
	ActionRedo          Action = "redo"
	ActionBringForward  Action = "bring_forward"
	ActionSendBackward  Action = "send_backward"
	ActionBringToFront  Action = "bring_to_front"
	ActionSendToBack    Action = "send_to_back"
	ActionSelectAll     Action = "select_all"
	ActionDeselectAll   Action = "deselect_all"
	ActionToolSelect    Action = "tool_select"
	ActionToolHand      Action = "tool_hand"
	ActionToolZoom      Action = "tool_zoom"
	ActionToolText      Action = "tool_text"
	ActionToolFrame     Action = "tool_frame"
)

var shortcutTable = map[KeyChord]Action{
	{ModPrimary, "d"}:            ActionDuplicate,
	{ModNone, "delete"}:          ActionDelete,
	{ModNone, "backspace"}:       ActionDelete,
	{ModPrimary, "g"}:            ActionGroup,
	{ModPrimary | ModShift, "g"}: ActionUngroup,
	{ModPrimary, "c"}:            ActionCopy,
	{ModPrimary, "v"}:            ActionPaste,
	{ModPrimary, "z"}:            ActionUndo,
	{ModPrimary | ModShift, "z"}: ActionRedo,
	{ModNone, "]"}:               ActionBringForward,
	{ModNone, "["}:               ActionSendBackward,
	{ModShift, "]"}:              ActionBringToFront,
	{ModShift, "["}:              ActionSendToBack,
	{ModPrimary, "a"}:            ActionSelectAll,
	{ModNone, "escape"}:          ActionDeselectAll,
	{ModNone, "v"}:               ActionToolSelect,
	{ModNone, "h"}:               ActionToolHand,
	{ModNone, "z"}:               ActionToolZoom,
	{ModNone, "t"}:               ActionToolText,
	{ModNone, "f"}:               ActionToolFrame,
}

// typingAllowed lists the actions that stay active while keyboard focus
// is inside a text-input-like element.
var typingAllowed = map[Action]bool{
	ActionSelectAll: true,
	ActionCopy:      true,
	ActionPaste:     true,
	ActionUndo:      true,
}

// LookupShortcut resolves a chord to an action. When typing is true the
// chord is suppressed unless the action is on the typing allow-list.
func LookupShortcut(chord KeyChord, typing bool) (Action, bool) {
	chord.Key = strings.ToLower(chord.Key)
	a, ok := shortcutTable[chord]
	if !ok {
		return "", false
	}
	if typing && !typingAllowed[a] {
		return "", false
	}
	return a, true
}
