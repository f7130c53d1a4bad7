package skills

// echo repeats the final transcript back to the device.
type echo struct {
	skillBase
}

func newEcho(data SkillData, _ Deps) (Skill, error) {
	return &echo{skillBase: skillBase{data: data}}, nil
}

func (e *echo) Handle(ev Event) *Reply {
	ended, ok := ev.(SpeechSessionEnded)
	if !ok || ended.Text == "" {
		return nil
	}
	return e.reply("RCH:EchoSkill", "you said, "+ended.Text)
}
