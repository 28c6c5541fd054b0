package api

import (
	"time"

	"github.com/peachstate/voterlens/internal/domain"
)

// Voter is the JSON shape voters are served as.
type Voter struct {
	RegistrationNumber    string        `json:"registrationNumber"`
	FirstName             string        `json:"firstName"`
	LastName              string        `json:"lastName"`
	Status                string        `json:"status"`
	BirthYear             *int          `json:"birthYear,omitempty"`
	Gender                string        `json:"gender,omitempty"`
	Race                  string        `json:"race,omitempty"`
	CountyName            string        `json:"countyName,omitempty"`
	ResidenceStreetNumber string        `json:"residenceStreetNumber,omitempty"`
	ResidenceStreetName   string        `json:"residenceStreetName,omitempty"`
	ResidenceCity         string        `json:"residenceCity,omitempty"`
	ResidenceZipcode      string        `json:"residenceZipcode,omitempty"`
	CongressionalDistrict string        `json:"congressionalDistrict,omitempty"`
	StateSenateDistrict   string        `json:"stateSenateDistrict,omitempty"`
	StateHouseDistrict    string        `json:"stateHouseDistrict,omitempty"`
	Precinct              string        `json:"precinct,omitempty"`
	Municipality          string        `json:"municipality,omitempty"`
	LastPartyVoted        string        `json:"lastPartyVoted,omitempty"`
	Longitude             *float64      `json:"longitude,omitempty"`
	Latitude              *float64      `json:"latitude,omitempty"`
	ParticipationScore    *float64      `json:"participationScore"`
	ParticipationHistory  []VotingEvent `json:"participationHistory,omitempty"`
}

// VotingEvent is one participation history entry.
type VotingEvent struct {
	ElectionDate string `json:"electionDate"`
	ElectionType string `json:"electionType,omitempty"`
	Party        string `json:"party,omitempty"`
	BallotStyle  string `json:"ballotStyle,omitempty"`
}

func voterToAPI(v domain.VoterRecord) Voter {
	out := Voter{
		RegistrationNumber:    v.RegistrationNumber,
		FirstName:             v.FirstName,
		LastName:              v.LastName,
		Status:                v.Status,
		BirthYear:             v.BirthYear,
		Gender:                v.Gender,
		Race:                  v.Race,
		CountyName:            v.CountyName,
		ResidenceStreetNumber: v.ResidenceStreetNumber,
		ResidenceStreetName:   v.ResidenceStreetName,
		ResidenceCity:         v.ResidenceCity,
		ResidenceZipcode:      v.ResidenceZipcode,
		CongressionalDistrict: v.CongressionalDistrict,
		StateSenateDistrict:   v.StateSenateDistrict,
		StateHouseDistrict:    v.StateHouseDistrict,
		Precinct:              v.Precinct,
		Municipality:          v.Municipality,
		LastPartyVoted:        v.LastPartyVoted,
		Longitude:             v.Longitude,
		Latitude:              v.Latitude,
		ParticipationScore:    v.ParticipationScore,
	}
	for _, e := range v.ParticipationHistory {
		out.ParticipationHistory = append(out.ParticipationHistory, VotingEvent{
			ElectionDate: e.ElectionDate.Format(time.DateOnly),
			ElectionType: e.ElectionType,
			Party:        e.Party,
			BallotStyle:  e.BallotStyle,
		})
	}
	return out
}

func votersToAPI(voters []domain.VoterRecord) []Voter {
	out := make([]Voter, len(voters))
	for i, v := range voters {
		out[i] = voterToAPI(v)
	}
	return out
}
