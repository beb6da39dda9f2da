package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/authdeck/internal/avatar"
	"github.com/Dicklesworthstone/authdeck/internal/form"
	"github.com/Dicklesworthstone/authdeck/internal/gateway"
	"github.com/Dicklesworthstone/authdeck/internal/nav"
)

// profileScreen shows the signed-in user, edits the display name, picks an
// avatar draft and signs out. The draft stays local until saved.
type profileScreen struct {
	base

	ctx    context.Context
	cancel context.CancelFunc

	nameForm *formView

	draft   *avatar.Draft
	picking bool
	picker  filepicker.Model

	// awaiting is set while a library pick runs; choice is the file request
	// the open picker answers.
	awaiting bool
	choice   *chooseRequest

	pending bool
}

func newProfileScreen(d *Deps) *profileScreen {
	ctx, cancel := context.WithCancel(context.Background())
	return &profileScreen{base: newBase(d), ctx: ctx, cancel: cancel}
}

func (s *profileScreen) route() nav.Route { return nav.Profile }

func (s *profileScreen) init() tea.Cmd { return s.watch() }

func (s *profileScreen) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case sessionMsg:
		_, cmd := s.onSession(msg)
		if !s.sess.IsAuthenticated() && s.nameForm != nil {
			s.nameForm.close()
			s.nameForm = nil
		}
		return cmd

	case submitDoneMsg:
		return s.onNameSaved(msg)

	case permissionMsg:
		if msg.from != s {
			return nil
		}
		return s.onPermission(msg)

	case photoMsg:
		if msg.from != s {
			return nil
		}
		s.pending = false
		s.awaiting = false
		s.finishChoice("")
		return s.onPhoto(msg.source, msg.result, msg.err)

	case chooseMsg:
		if !s.awaiting || s.choice != nil {
			msg.req.reply <- ""
			return nil
		}
		return s.openPicker(msg.req)

	case photoSavedMsg:
		if msg.from != s {
			return nil
		}
		s.pending = false
		if msg.err != nil {
			return s.failure(msg.err)
		}
		s.draft = nil
		return showAlert(alert{title: s.t("alert.notice"), body: s.t("profile.photo_updated")})

	case signedOutMsg:
		if msg.from != s {
			return nil
		}
		s.pending = false
		var a *alert
		if msg.err != nil {
			a = &alert{title: s.t("alert.notice"), body: s.t("profile.signed_out")}
		}
		return navigate(navReset, msg.route, a)

	case tea.KeyMsg:
		return s.handleKey(msg)
	}

	if s.picking {
		return s.updatePicker(msg)
	}
	return nil
}

func (s *profileScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	k := s.deps.keys

	if s.picking {
		if key.Matches(msg, k.Back) {
			s.finishChoice("")
			return nil
		}
		return s.updatePicker(msg)
	}

	if s.nameForm != nil {
		if key.Matches(msg, k.Back) {
			s.nameForm.close()
			s.nameForm = nil
			return nil
		}
		submit, cmd := s.nameForm.handleKey(msg)
		if submit {
			return s.saveName()
		}
		return cmd
	}

	if key.Matches(msg, k.Back) {
		return navigate(navBack, "", nil)
	}

	if !s.sess.IsAuthenticated() {
		if key.Matches(msg, k.Submit, k.Login) {
			return navigate(navTo, nav.Login, nil)
		}
		return nil
	}

	if s.pending {
		return nil
	}

	switch {
	case key.Matches(msg, k.EditName):
		s.nameForm = newFormView(s.deps, form.DisplayNameSchema(), fieldSpec{
			field:       form.FieldDisplayName,
			placeholder: s.t("profile.name_placeholder"),
			value:       s.sess.User().DisplayName,
		})
		return nil
	case key.Matches(msg, k.PickPhoto):
		return s.requestPermissions(photoFromLibrary)
	case key.Matches(msg, k.TakePhoto):
		return s.requestPermissions(photoFromCamera)
	case key.Matches(msg, k.SavePhoto):
		if s.draft == nil {
			return nil
		}
		return s.savePhoto()
	case key.Matches(msg, k.SignOut):
		return s.signOut()
	}
	return nil
}

// requestPermissions asks for camera and media library access before either
// photo action.
func (s *profileScreen) requestPermissions(action photoAction) tea.Cmd {
	picker := s.deps.Picker
	if picker == nil {
		return showAlert(alert{title: s.t("alert.error"), body: s.t("profile.permission_denied"), isError: true})
	}
	s.pending = true
	ctx := s.ctx
	return func() tea.Msg {
		camera, err := picker.RequestCameraPermission(ctx)
		if err != nil {
			return permissionMsg{from: s, action: action, err: err}
		}
		library, err := picker.RequestMediaLibraryPermission(ctx)
		return permissionMsg{from: s, action: action, granted: camera && library, err: err}
	}
}

func (s *profileScreen) onPermission(msg permissionMsg) tea.Cmd {
	if msg.err != nil || !msg.granted {
		s.pending = false
		if msg.err != nil {
			s.deps.Logger.Warn("permission request failed", "error", msg.err)
		}
		return showAlert(alert{title: s.t("alert.error"), body: s.t("profile.permission_denied"), isError: true})
	}

	picker := s.deps.Picker
	ctx := s.ctx
	if msg.action == photoFromCamera {
		return func() tea.Msg {
			res, err := picker.CaptureFromCamera(ctx)
			return photoMsg{from: s, source: avatar.SourceCamera, result: res, err: err}
		}
	}

	s.awaiting = true
	done := make(chan struct{})
	pick := func() tea.Msg {
		defer close(done)
		res, err := picker.PickFromLibrary(ctx)
		return photoMsg{from: s, source: avatar.SourceLibrary, result: res, err: err}
	}
	if s.deps.Chooser == nil {
		return pick
	}
	return tea.Batch(pick, s.deps.Chooser.wait(ctx, done))
}

// openPicker shows the file picker for a pending library pick.
func (s *profileScreen) openPicker(req chooseRequest) tea.Cmd {
	s.choice = &req
	s.picking = true
	s.picker = filepicker.New()
	s.picker.CurrentDirectory = req.dir
	s.picker.AllowedTypes = []string{".png", ".jpg", ".jpeg", ".gif"}
	s.picker.AutoHeight = false
	s.picker.Height = 12
	return s.picker.Init()
}

// finishChoice answers the open file request and closes the picker. An empty
// path cancels the pick.
func (s *profileScreen) finishChoice(path string) {
	if s.choice != nil {
		s.choice.reply <- path
		s.choice = nil
	}
	s.picking = false
}

func (s *profileScreen) updatePicker(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	s.picker, cmd = s.picker.Update(msg)

	if ok, path := s.picker.DidSelectFile(msg); ok {
		s.finishChoice(path)
		return cmd
	}
	if ok, _ := s.picker.DidSelectDisabledFile(msg); ok {
		return tea.Batch(cmd, showAlert(alert{title: s.t("alert.error"), body: avatar.ErrNotImage.Error(), isError: true}))
	}
	return cmd
}

func (s *profileScreen) onPhoto(source avatar.Source, res avatar.Result, err error) tea.Cmd {
	if err != nil {
		s.deps.Logger.Warn("photo pick failed", "source", string(source), "error", err)
		return showAlert(alert{title: s.t("alert.error"), body: err.Error(), isError: true})
	}
	if res.Canceled || res.URI == "" {
		return nil
	}
	s.draft = &avatar.Draft{URI: res.URI, Source: source}
	return nil
}

func (s *profileScreen) saveName() tea.Cmd {
	ctx, ok := s.nameForm.begin()
	if !ok {
		return nil
	}
	name := s.nameForm.value(form.FieldDisplayName)
	gw := s.deps.Gateway
	return submitCmd(ctx, s.nameForm.state, func(ctx context.Context) (any, error) {
		return gw.UpdateDisplayName(ctx, name)
	})
}

func (s *profileScreen) onNameSaved(msg submitDoneMsg) tea.Cmd {
	if s.nameForm == nil || !s.nameForm.owns(msg) {
		return nil
	}
	if msg.err != nil {
		body := s.t("profile.name_failed") + "\n" + s.deps.Catalog.Failure("profile", gateway.Classify(msg.err))
		return showAlert(alert{title: s.t("alert.error"), body: body, isError: true})
	}
	s.nameForm.close()
	s.nameForm = nil
	return showAlert(alert{title: s.t("alert.notice"), body: s.t("profile.name_updated")})
}

func (s *profileScreen) savePhoto() tea.Cmd {
	s.pending = true
	uri := s.draft.URI
	gw := s.deps.Gateway
	ctx := s.ctx
	return func() tea.Msg {
		_, err := gw.UpdatePhotoURL(ctx, uri)
		return photoSavedMsg{from: s, err: err}
	}
}

func (s *profileScreen) signOut() tea.Cmd {
	s.pending = true
	gw := s.deps.Gateway
	ctx := s.ctx
	return func() tea.Msg {
		route, err := gw.SignOut(ctx)
		return signedOutMsg{from: s, route: route, err: err}
	}
}

func (s *profileScreen) failure(err error) tea.Cmd {
	return showAlert(alert{
		title:   s.t("alert.error"),
		body:    s.deps.Catalog.Failure("profile", gateway.Classify(err)),
		isError: true,
	})
}

func (s *profileScreen) view() string {
	st := s.deps.styles
	var b strings.Builder
	b.WriteString(st.Title.Render(s.t("profile.heading")))
	b.WriteString("\n")

	if s.picking {
		b.WriteString(st.Muted.Render(s.picker.CurrentDirectory))
		b.WriteString("\n")
		b.WriteString(s.picker.View())
		return b.String()
	}

	if !s.sess.IsAuthenticated() {
		b.WriteString(st.Text.Render(s.t("profile.anonymous")))
		b.WriteString("\n\n")
		b.WriteString(st.ButtonActive.Render(s.t("profile.login_now")))
		b.WriteString("\n")
		return b.String()
	}

	u := s.sess.User()
	row := func(label, value string) {
		b.WriteString(st.Label.Render(label))
		b.WriteString(" ")
		b.WriteString(st.Text.Render(value))
		b.WriteString("\n")
	}
	row(s.t("profile.email"), u.Email)
	row(s.t("profile.uid"), u.UID)
	if s.nameForm != nil {
		b.WriteString(st.Label.Render(s.t("profile.display_name")))
		b.WriteString("\n")
		b.WriteString(s.nameForm.view())
	} else {
		row(s.t("profile.display_name"), u.DisplayName)
	}

	b.WriteString("\n")
	switch {
	case s.draft != nil:
		b.WriteString(st.Warning.Render(avatar.PathFromURI(s.draft.URI)))
	case u.PhotoURL != "":
		b.WriteString(st.Text.Render(avatar.PathFromURI(u.PhotoURL)))
	default:
		b.WriteString(st.Muted.Render(s.t("profile.no_photo")))
	}
	b.WriteString("\n\n")

	buttons := []string{
		st.Button.Render(s.t("profile.edit")),
		st.Button.Render(s.t("profile.pick_photo")),
		st.Button.Render(s.t("profile.take_photo")),
	}
	if s.draft != nil {
		buttons = append(buttons, st.ButtonActive.Render(s.t("profile.save_photo")))
	}
	buttons = append(buttons, st.Button.Render(s.t("profile.sign_out")))
	b.WriteString(strings.Join(buttons, " "))
	b.WriteString("\n")
	return b.String()
}

func (s *profileScreen) bindings() []key.Binding {
	k := s.deps.keys
	switch {
	case s.picking:
		return []key.Binding{k.Submit, k.Back}
	case s.nameForm != nil:
		return []key.Binding{k.Submit, k.Back}
	case !s.sess.IsAuthenticated():
		return []key.Binding{k.Submit, k.Back}
	}
	out := []key.Binding{k.EditName, k.PickPhoto, k.TakePhoto}
	if s.draft != nil {
		out = append(out, k.SavePhoto)
	}
	return append(out, k.SignOut, k.Back)
}

func (s *profileScreen) busy() bool {
	if s.nameForm != nil && s.nameForm.state.Submitting() {
		return true
	}
	return s.pending
}

func (s *profileScreen) close() {
	s.cancel()
	if s.nameForm != nil {
		s.nameForm.close()
	}
	s.release()
}
