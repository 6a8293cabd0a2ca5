package vm

// RegCount is the fixed size of the register file. 16 is sufficient for
// every test program in the source corpus.
const RegCount = 16

type slotKind uint8

const (
	slotEmpty slotKind = iota
	slotOwned
	slotRef
)

// slot is either Empty, an owning slot holding a Value directly, or a
// reference slot holding the index of the owning slot it aliases. A
// reference never points at another reference (invariant 1): Ref always
// names a slot whose own kind is slotOwned.
type slot struct {
	kind  slotKind
	value Value
	ref   int
}

// RegisterFile is the fixed-size vector of register slots the VM
// dispatch loop operates on.
type RegisterFile struct {
	slots [RegCount]slot
}

// NewRegisterFile returns a register file with every slot empty.
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{}
}

func checkBounds(i int) bool {
	return i >= 0 && i < RegCount
}

// referencesTo returns the indices of every reference slot currently
// aliasing owner.
func (rf *RegisterFile) referencesTo(owner int) []int {
	var out []int
	for i := range rf.slots {
		if rf.slots[i].kind == slotRef && rf.slots[i].ref == owner {
			out = append(out, i)
		}
	}
	return out
}

// relinquish clears slot i's ownership responsibility. If i owns a value
// that other slots alias, ownership is handed to the first alias and the
// remaining aliases are repointed at it; otherwise i's value is simply
// abandoned (the caller is about to overwrite or empty it).
func (rf *RegisterFile) relinquish(i int) {
	s := &rf.slots[i]
	if s.kind != slotOwned {
		return
	}
	aliases := rf.referencesTo(i)
	if len(aliases) == 0 {
		return
	}
	newOwner := aliases[0]
	rf.slots[newOwner] = slot{kind: slotOwned, value: s.value}
	for _, a := range aliases[1:] {
		rf.slots[a].ref = newOwner
	}
}

// Fetch bounds-checks and null-checks register i, resolving through a
// reference slot to the value its owner holds.
func (rf *RegisterFile) Fetch(i int) (Value, error) {
	if !checkBounds(i) {
		return Value{}, errOutOfBoundsRead(i)
	}
	s := rf.slots[i]
	switch s.kind {
	case slotEmpty:
		return Value{}, errNullRegister(i)
	case slotRef:
		return rf.slots[s.ref].value, nil
	default:
		return s.value, nil
	}
}

// IsReference reports whether register i is currently a reference slot.
func (rf *RegisterFile) IsReference(i int) bool {
	return checkBounds(i) && rf.slots[i].kind == slotRef
}

// IsEmpty reports whether register i holds no value.
func (rf *RegisterFile) IsEmpty(i int) bool {
	return checkBounds(i) && rf.slots[i].kind == slotEmpty
}

// Place installs value into register i. If i is a reference slot, the
// value is written into the owning slot it aliases, so every other
// reference sharing that owner observes the change. Otherwise i becomes
// (or remains) an owning slot holding value directly; if other slots
// already alias i, they too observe the change for free, since they
// resolve through i's index rather than a stale copy.
func (rf *RegisterFile) Place(i int, value Value) error {
	if !checkBounds(i) {
		return errOutOfBoundsWrite(i)
	}
	s := &rf.slots[i]
	if s.kind == slotRef {
		rf.slots[s.ref].value = value
		return nil
	}
	s.kind = slotOwned
	s.value = value
	return nil
}

// Ref marks dst as a reference slot aliasing the value currently owned
// by src. src must be non-empty. References never chain: if src is
// itself a reference, dst aliases src's owner directly.
func (rf *RegisterFile) Ref(dst, src int) error {
	if !checkBounds(dst) {
		return errOutOfBoundsWrite(dst)
	}
	if !checkBounds(src) {
		return errOutOfBoundsRead(src)
	}
	srcSlot := rf.slots[src]
	if srcSlot.kind == slotEmpty {
		return errNullRegister(src)
	}
	owner := src
	if srcSlot.kind == slotRef {
		owner = srcSlot.ref
	}
	rf.relinquish(dst)
	rf.slots[dst] = slot{kind: slotRef, ref: owner}
	return nil
}

// Move transfers the value of a into b (via Place, preserving alias
// semantics) and empties a.
func (rf *RegisterFile) Move(a, b int) error {
	v, err := rf.Fetch(a)
	if err != nil {
		return err
	}
	if err := rf.Place(b, v); err != nil {
		return err
	}
	if !checkBounds(a) {
		return errOutOfBoundsWrite(a)
	}
	rf.relinquish(a)
	rf.slots[a] = slot{kind: slotEmpty}
	return nil
}

// Copy deep-copies the value of a into b, leaving a untouched.
func (rf *RegisterFile) Copy(a, b int) error {
	v, err := rf.Fetch(a)
	if err != nil {
		return err
	}
	return rf.Place(b, v)
}

// Swap exchanges the handles (and reference flags) of a and b, fixing up
// any other slot that referenced either one so it keeps aliasing the
// same owning value.
func (rf *RegisterFile) Swap(a, b int) error {
	if !checkBounds(a) {
		return errOutOfBoundsWrite(a)
	}
	if !checkBounds(b) {
		return errOutOfBoundsWrite(b)
	}
	if a == b {
		return nil
	}
	for i := range rf.slots {
		if i == a || i == b {
			continue
		}
		if rf.slots[i].kind == slotRef {
			switch rf.slots[i].ref {
			case a:
				rf.slots[i].ref = b
			case b:
				rf.slots[i].ref = a
			}
		}
	}
	rf.slots[a], rf.slots[b] = rf.slots[b], rf.slots[a]
	// A slot that aliased the other half of the swap now sits at the
	// opposite index; if it still names itself, repoint it to where its
	// owner actually ended up.
	if rf.slots[a].kind == slotRef && rf.slots[a].ref == a {
		rf.slots[a].ref = b
	}
	if rf.slots[b].kind == slotRef && rf.slots[b].ref == b {
		rf.slots[b].ref = a
	}
	return nil
}

// Delete destroys the value in r and empties the slot. If r was owned
// and aliased elsewhere, ownership transfers to one of the aliases so
// the remaining aliases keep resolving correctly.
func (rf *RegisterFile) Delete(r int) error {
	if !checkBounds(r) {
		return errOutOfBoundsWrite(r)
	}
	rf.relinquish(r)
	rf.slots[r] = slot{kind: slotEmpty}
	return nil
}
