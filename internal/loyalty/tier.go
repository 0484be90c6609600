// Package loyalty реализует правила программы лояльности: порядок уровней,
// доступность вознаграждений и двухфазное подтверждение списаний.
package loyalty

import "github.com/kuriftu/rewards-system/internal/model"

// tierOrder задаёт фиксированный порядок уровней. Сравнение по индексу.
var tierOrder = []model.Tier{
	model.TierBronze,
	model.TierSilver,
	model.TierGold,
	model.TierPlatinum,
}

// TierIndex возвращает позицию уровня в порядке возрастания.
// Неизвестный уровень считается ниже бронзового.
func TierIndex(tier model.Tier) int {
	for i, t := range tierOrder {
		if t == tier {
			return i
		}
	}
	return -1
}

// IsValidTier сообщает, является ли значение допустимым уровнем лояльности.
func IsValidTier(tier model.Tier) bool {
	return TierIndex(tier) >= 0
}

// AvailableRewards отбирает вознаграждения, доступные уровню пользователя.
// Сравнение включающее: платиновый уровень видит весь каталог, бронзовый —
// только бронзовые вознаграждения.
func AvailableRewards(all []model.Reward, userTier model.Tier) []model.Reward {
	userIdx := TierIndex(userTier)

	res := make([]model.Reward, 0, len(all))
	for _, r := range all {
		if userIdx >= TierIndex(r.RequiredTier) {
			res = append(res, r)
		}
	}
	return res
}

// Пороги уровней по накопленным баллам. Используются только для отображения
// прогресса на дашборде: хранимый уровень пользователя не пересчитывается
// автоматически при пересечении порога.
const (
	silverThreshold   = 1001
	goldThreshold     = 2501
	platinumThreshold = 5001
)

// TierForPoints возвращает уровень, соответствующий количеству баллов.
func TierForPoints(points int64) model.Tier {
	switch {
	case points >= platinumThreshold:
		return model.TierPlatinum
	case points >= goldThreshold:
		return model.TierGold
	case points >= silverThreshold:
		return model.TierSilver
	default:
		return model.TierBronze
	}
}

// NextTier возвращает следующий уровень и количество недостающих до него баллов.
// Для платинового уровня следующего нет.
func NextTier(points int64) (model.Tier, int64, bool) {
	switch TierForPoints(points) {
	case model.TierPlatinum:
		return "", 0, false
	case model.TierGold:
		return model.TierPlatinum, platinumThreshold - points, true
	case model.TierSilver:
		return model.TierGold, goldThreshold - points, true
	default:
		return model.TierSilver, silverThreshold - points, true
	}
}
