package entity

// All returns every persisted model in migration order.
func All() []any {
	return []any{
		&User{},
		&Class{},
		&Team{},
		&ClassRole{},
		&TeamMember{},
		&Survey{},
		&Response{},
		&IcebreakerQuestion{},
		&ClassIcebreakerQuestion{},
		&IcebreakerResponse{},
		&TeamAgreement{},
		&AgreementSignature{},
		&Notification{},
	}
}
