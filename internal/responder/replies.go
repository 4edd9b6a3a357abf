package responder

var firstContact = []string{
	"Hello? Who is this?",
	"I'm not sure I understand. What is this about?",
	"Can you tell me who you are and why you're contacting me?",
	"Sorry, I think you might have the wrong person.",
}

var (
	initialReplies = []string{
		"Oh no, what happened? Why is there an issue with my account?",
		"I'm confused, which account are you talking about?",
		"Is this serious? Should I be worried?",
		"Can you tell me more about what's going on?",
		"I don't understand, what seems to be the problem?",
	}
	bankReplies = []string{
		"Which bank is this regarding? I have accounts in multiple banks.",
		"Is this about my SBI account or HDFC account?",
	}
)

var (
	engagementReplies = []string{
		"That sounds concerning. What do I need to do exactly?",
		"I see. Can you walk me through the process step by step?",
		"Okay, I understand. What's the first thing I should do?",
		"Thank you for letting me know. How can I resolve this quickly?",
	}
	urgentReplies = []string{
		"This seems urgent. What happens if I don't act immediately?",
		"I'm a bit scared now. Please help me understand this better.",
	}
)

var (
	infoSeekingReplies = []string{
		"Can you provide more details about the verification process?",
		"What information do you need from me exactly?",
		"Is there a website or official portal I should visit?",
		"How can I confirm this is legitimate?",
	}
	upiReplies = []string{
		"Which UPI ID should I use? I have multiple payment apps.",
		"Should I use my Google Pay UPI or PhonePe UPI?",
	}
	linkReplies = []string{
		"Can you send me the official link? I want to make sure it's authentic.",
		"Is there a government website I should check?",
	}
)

var (
	verificationReplies = []string{
		"I want to make sure this is legitimate. Can you verify your identity?",
		"How can I confirm you're actually from the bank/organization?",
		"Is there a customer service number I can call to verify this?",
		"Can you provide any reference number or case ID for this issue?",
	}
	moneyReplies = []string{
		"Why do I need to make a payment to resolve this?",
		"Is there any fee involved? How much exactly?",
	}
)

var (
	advancedReplies = []string{
		"I've been getting similar messages lately. How do I know this isn't a scam?",
		"My friend warned me about fraud attempts. Can you prove this is genuine?",
		"I think I should contact my bank directly to confirm this.",
		"Can you share your employee ID or official identification?",
	}
	kycReplies = []string{
		"But I already completed my KYC last year. Why do I need to do it again?",
		"Should I visit my bank branch for KYC verification instead?",
	}
)
