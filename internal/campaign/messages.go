package campaign

// Message keys used by the call flow. Campaigns may override any of them
// with recordings; these TTS defaults keep a bare campaign usable.
const (
	MsgIntro            = "msg_intro"
	MsgIntroConfirm     = "msg_intro_confirm"
	MsgIntroLocation    = "msg_intro_location"
	MsgLocation         = "msg_location"
	MsgUnparsedLocation = "msg_unparsed_location"
	MsgInvalidLocation  = "msg_invalid_location"
	MsgCallBlockIntro   = "msg_call_block_intro"
	MsgTargetIntro      = "msg_target_intro"
	MsgTargetBusy       = "msg_target_busy"
	MsgBetweenCalls     = "msg_between_calls"
	MsgFinalThanks      = "msg_final_thanks"
	MsgGoodbye          = "msg_goodbye"
	MsgCampaignComplete = "msg_campaign_complete"
	MsgPromptSchedule   = "msg_prompt_schedule"
	MsgAlterSchedule    = "msg_alter_schedule"
	MsgScheduleStart    = "msg_schedule_start"
	MsgScheduleStop     = "msg_schedule_stop"
)

// DefaultMessages are plain TTS renditions used when a campaign has no
// recording for a key. Templates use {{name}} substitution.
var DefaultMessages = map[string]Message{
	MsgIntro:            {Text: "Thanks for calling."},
	MsgIntroConfirm:     {Text: "Press any key to get started."},
	MsgIntroLocation:    {Text: "Thanks for taking action with {{organization}}."},
	MsgLocation:         {Text: "Please enter your 5 digit postal code."},
	MsgUnparsedLocation: {Text: "We didn't get that. Please enter your 5 digit postal code."},
	MsgInvalidLocation:  {Text: "Sorry, we can't find any representatives for {{location}}."},
	MsgCallBlockIntro:   {Text: "We will connect you to {{n_targets}} representatives. Remember to state your name and where you are calling from."},
	MsgTargetIntro:      {Text: "Connecting you to {{title}} {{name}} at the {{location}} office."},
	MsgTargetBusy:       {Text: "The line for {{title}} {{name}} is busy right now."},
	MsgBetweenCalls:     {Text: "You have {{calls_left}} more calls to make."},
	MsgFinalThanks:      {Text: "Thank you for calling. Goodbye."},
	MsgGoodbye:          {Text: "Goodbye."},
	MsgCampaignComplete: {Text: "This campaign has ended. Thank you for your support."},
	MsgPromptSchedule:   {Text: "To schedule a daily reminder call at this time, press 1."},
	MsgAlterSchedule:    {Text: "You have a daily reminder call scheduled. To stop receiving reminders, press 9."},
	MsgScheduleStart:    {Text: "Daily reminder calls scheduled. You can stop any time."},
	MsgScheduleStop:     {Text: "Your reminder calls are stopped."},
}
