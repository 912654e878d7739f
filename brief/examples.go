package brief

// Example is a sample product brief for demos and batch runs.
type Example struct {
	Name        string
	Description string
	Tone        string
	Platforms   string
}

// Examples covers a spread of product categories.
var Examples = []Example{
	{"Eco-Friendly Product", "New eco-friendly water bottle, made from bamboo", "Energetic, environmentally conscious", "Instagram, Facebook"},
	{"Tech Product", "AI-powered smart watch with 24/7 health monitoring, sleep tracking, and fitness coaching", "Modern, innovative, trustworthy", "LinkedIn, Twitter"},
	{"Food & Beverage", "Organic cold-pressed juice blend with superfood ingredients, no added sugar", "Fresh, healthy, vibrant", "Instagram, TikTok"},
	{"Fashion", "Handcrafted leather backpack with laptop compartment, designed for urban professionals", "Sophisticated, practical, stylish", "Pinterest, Instagram"},
	{"Service/App", "Meditation app with personalized mindfulness exercises and sleep stories", "Calm, supportive, inviting", "Facebook, Reddit"},
	{"Home & Living", "Smart home security camera with AI motion detection and night vision", "Secure, reliable, cutting-edge", "Facebook, YouTube"},
	{"Beauty & Personal Care", "Natural skincare serum with vitamin C and hyaluronic acid, cruelty-free", "Luxurious, clean, effective", "Instagram, TikTok"},
	{"Fitness", "Adjustable resistance bands set with workout guide, perfect for home gym", "Motivating, empowering, accessible", "YouTube, Instagram"},
	{"Education", "Online coding bootcamp for beginners, learn Python in 8 weeks with mentorship", "Encouraging, professional, growth-focused", "LinkedIn, Twitter"},
	{"Pet Products", "Automatic pet feeder with portion control and scheduling via smartphone app", "Caring, convenient, modern", "Facebook, Instagram"},
}

// Brief returns the example as a brief. Tone and platforms are appended as
// guidance for the writer.
func (e Example) Brief() *Brief {
	return &Brief{
		Prompt: e.Description + ". Tone: " + e.Tone + ". Platforms: " + e.Platforms + ".",
		Source: SourceText,
		Title:  e.Name,
	}
}
