package studio

// Endpoint names, relative to the configured base URL
const (
	EndpointGenerateToken   = "generateStudioAttendanceToken"
	EndpointAllParticipants = "allParticipants"
	EndpointClassDetails    = "getAvailableClassDetails"
)

// Fixed request values expected by the studio API
const (
	originAttendance  = "attendance"
	regIDTypeMember   = "M"
	studentViewYes    = "Y"
	classTypeMember   = "membership"
	userLoginTypeNone = ""
)

// Participant is one enrolled student returned by the participant listing
type Participant struct {
	ParticipantID  string `json:"participant_id"`
	StudentID      string `json:"student_id"`
	RegistrationID string `json:"membership_registration_id"`
	FirstName      string `json:"participant_first_name"`
	LastName       string `json:"participant_last_name"`
	RankName       string `json:"rank_name"`
}

// CheckinEvent is one attendance status record for a participant on a given date.
// Timestamp is kept raw ("YYYY-MM-DD HH:MM:SS", UTC) and parsed during aggregation.
type CheckinEvent struct {
	Status    string `json:"checkin_status"`
	Timestamp string `json:"att_checkin_datetime"`
}

type generateTokenRequest struct {
	CompanyID string `json:"company_id"`
	Email     string `json:"email"`
	FromPage  string `json:"from_page"`
}

type generateTokenResponse struct {
	Msg *string `json:"msg"`
}

type allParticipantsRequest struct {
	CompanyID   string `json:"company_id"`
	Email       string `json:"email"`
	From        string `json:"from"`
	FromPage    string `json:"from_page"`
	ProgramDate string `json:"program_date"`
	Token       string `json:"token"`
}

type allParticipantsResponse struct {
	StudentDetail map[string][]Participant `json:"student_detail"`
}

type classDetailsRequest struct {
	CompanyID     string `json:"company_id"`
	Token         string `json:"token"`
	Email         string `json:"email"`
	UserLoginType string `json:"user_login_type"`
	From          string `json:"from"`
	FromPage      string `json:"from_page"`
	ParticipantID string `json:"participant_id"`
	StudentID     string `json:"student_id"`
	RegID         string `json:"reg_id"`
	RegIDType     string `json:"reg_id_type"`
	SelectedDate  string `json:"selected_date"`
	StudentView   string `json:"student_view"`
	Type          string `json:"type"`
}

type classDetailsResponse struct {
	ClassDetails []CheckinEvent `json:"class_details"`
}
