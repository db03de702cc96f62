package hotkey

// FakeHotkey is driven by tests through SimKeydown and SimKeyup. Events are
// buffered one deep, so a press can be simulated before anything listens.
type FakeHotkey struct {
	keydown chan struct{}
	keyup   chan struct{}

	// RegisterErr, when set, is returned by Register, as when another
	// application has grabbed the key.
	RegisterErr error
	Registered  bool
}

func NewFake() *FakeHotkey {
	return &FakeHotkey{
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (f *FakeHotkey) Register() error {
	if f.RegisterErr != nil {
		return f.RegisterErr
	}
	f.Registered = true
	return nil
}

func (f *FakeHotkey) Unregister()              { f.Registered = false }
func (f *FakeHotkey) Keydown() <-chan struct{} { return f.keydown }
func (f *FakeHotkey) Keyup() <-chan struct{}   { return f.keyup }

func (f *FakeHotkey) SimKeydown() { f.keydown <- struct{}{} }
func (f *FakeHotkey) SimKeyup()   { f.keyup <- struct{}{} }
