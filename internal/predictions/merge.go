package predictions

import "nflpicks/tracker/internal/models"

// Merge unions local and remote key-wise. Keys present locally are kept
// as-is; keys only present remotely are adopted. The result carries local's
// timestamp and version.
func Merge(local, remote models.Payload) models.Payload {
	out := local.Clone()
	normalizePayload(&out)

	for gameID, team := range remote.Predictions {
		if _, ok := out.Predictions[gameID]; !ok {
			out.Predictions[gameID] = team
		}
	}
	for code, rec := range remote.TeamRecordPredictions {
		if _, ok := out.TeamRecordPredictions[code]; !ok {
			out.TeamRecordPredictions[code] = rec
		}
	}
	for conf, rounds := range remote.PostseasonPredictions.Conferences {
		if out.PostseasonPredictions.Conferences[conf] == nil {
			out.PostseasonPredictions.Conferences[conf] = map[models.Round][]string{}
		}
		localRounds := out.PostseasonPredictions.Conferences[conf]
		for round, slots := range rounds {
			if len(localRounds[round]) == 0 && len(slots) > 0 {
				localRounds[round] = append([]string(nil), slots...)
			}
		}
	}
	if len(out.PostseasonPredictions.SuperBowl) == 0 && len(remote.PostseasonPredictions.SuperBowl) > 0 {
		out.PostseasonPredictions.SuperBowl = append([]string(nil), remote.PostseasonPredictions.SuperBowl...)
	}
	return out
}

func normalizePayload(p *models.Payload) {
	if p.Predictions == nil {
		p.Predictions = map[string]string{}
	}
	if p.TeamRecordPredictions == nil {
		p.TeamRecordPredictions = map[string]models.Record{}
	}
	if p.PostseasonPredictions.Conferences == nil {
		p.PostseasonPredictions.Conferences = map[models.Conference]map[models.Round][]string{}
	}
}
