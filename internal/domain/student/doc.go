// Package student содержит доменную модель ученика класса.
//
// Пакет определяет:
//
//   - Сущность Student: имя, номер в списке, обращение, уровень, опыт,
//     золото, шесть способностей и аватар
//   - Value Object Avatar со слотами body/head/hat/weapon
//   - Dedupe - слияние дублей ученика, которые накапливались
//     в нескольких копиях списка класса
//   - Интерфейс Repository (реализации в infrastructure/persistence)
//
// # Награды
//
// Ученик не считает опыт сам: любая награда проходит через ApplyGrant,
// который делегирует в progression.Apply. Уровень всегда выводится из опыта:
//
//	out, err := s.ApplyGrant(rules, progression.Grant{
//	    Exp:       30,
//	    Gold:      10,
//	    Abilities: progression.FlagsOf(progression.AbilityDiligence),
//	})
//	if out.LeveledUp() {
//	    bus.Publish(shared.NewLevelUpEvent(s.ID, s.ClassID, out.LevelBefore, out.LevelAfter, out.GoldFromLevel))
//	}
package student
