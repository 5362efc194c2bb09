package student

import "strings"

// Slot - слот экипировки аватара.
type Slot string

const (
	SlotBody   Slot = "body"
	SlotHead   Slot = "head"
	SlotHat    Slot = "hat"
	SlotWeapon Slot = "weapon"
)

// IsValid проверяет, что слот известен.
func (s Slot) IsValid() bool {
	switch s {
	case SlotBody, SlotHead, SlotHat, SlotWeapon:
		return true
	}
	return false
}

// ParseSlot разбирает имя слота без учёта регистра.
func ParseSlot(s string) (Slot, error) {
	slot := Slot(strings.ToLower(strings.TrimSpace(s)))
	if !slot.IsValid() {
		return "", ErrInvalidSlot
	}
	return slot, nil
}

// Avatar - композиция до четырёх предметов. Значение слота - ссылка
// на предмет магазина или путь к изображению; пустая строка - слот свободен.
type Avatar struct {
	Body   string `json:"body,omitempty"`
	Head   string `json:"head,omitempty"`
	Hat    string `json:"hat,omitempty"`
	Weapon string `json:"weapon,omitempty"`
}

// IsEmpty возвращает true, если ничего не надето.
func (a Avatar) IsEmpty() bool {
	return a == Avatar{}
}

// Get возвращает предмет в слоте.
func (a Avatar) Get(slot Slot) string {
	switch slot {
	case SlotBody:
		return a.Body
	case SlotHead:
		return a.Head
	case SlotHat:
		return a.Hat
	case SlotWeapon:
		return a.Weapon
	}
	return ""
}

// Equip надевает предмет в слот.
func (a *Avatar) Equip(slot Slot, ref string) error {
	ref = strings.TrimSpace(ref)
	switch slot {
	case SlotBody:
		a.Body = ref
	case SlotHead:
		a.Head = ref
	case SlotHat:
		a.Hat = ref
	case SlotWeapon:
		a.Weapon = ref
	default:
		return ErrInvalidSlot
	}
	return nil
}

// Unequip освобождает слот.
func (a *Avatar) Unequip(slot Slot) error {
	return a.Equip(slot, "")
}

// fillFrom заполняет пустые слоты из другого аватара.
func (a *Avatar) fillFrom(other Avatar) {
	if a.Body == "" {
		a.Body = other.Body
	}
	if a.Head == "" {
		a.Head = other.Head
	}
	if a.Hat == "" {
		a.Hat = other.Hat
	}
	if a.Weapon == "" {
		a.Weapon = other.Weapon
	}
}

// EquipItem надевает предмет ученику и обновляет отметку времени.
func (s *Student) EquipItem(slot Slot, ref string) error {
	if err := s.Avatar.Equip(slot, ref); err != nil {
		return err
	}
	s.touch()
	return nil
}
