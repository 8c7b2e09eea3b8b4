package directory

import "github.com/hackgods/carebook-scheduling/internal/appointment"

// ReferenceAppointmentTypes returns the appointment types a fresh install
// starts with. IDs are left zero.
func ReferenceAppointmentTypes() []appointment.AppointmentType {
	return []appointment.AppointmentType{
		{Name: "Annual Physical", Description: "Comprehensive yearly health examination", DurationMinutes: 60, Category: "Preventive"},
		{Name: "Sick Visit", Description: "Visit for acute illness or symptoms", DurationMinutes: 20, Category: "Acute"},
		{Name: "Follow-up Visit", Description: "Follow-up on previous treatment or condition", DurationMinutes: 20, Category: "Follow-up"},
		{Name: "New Patient Consultation", Description: "Initial visit for new patients", DurationMinutes: 45, Category: "New Patient"},
		{Name: "Specialist Referral", Description: "Visit referred by another physician", DurationMinutes: 30, Category: "Specialist"},
		{Name: "Preventive Screening", Description: "Routine screening tests and evaluations", DurationMinutes: 30, Category: "Preventive"},
		{Name: "Vaccination", Description: "Immunization and vaccine administration", DurationMinutes: 15, Category: "Preventive"},
		{Name: "Telehealth Visit", Description: "Virtual appointment via video call", DurationMinutes: 20, Category: "Virtual"},
		{Name: "Urgent Care", Description: "Same-day visit for urgent health needs", DurationMinutes: 30, Category: "Acute"},
		{Name: "Lab Work / Blood Draw", Description: "Laboratory testing and blood work", DurationMinutes: 15, Category: "Diagnostic"},
	}
}

// ReferenceProviders returns the providers a fresh install starts with.
// IDs are left zero.
func ReferenceProviders() []appointment.Provider {
	return []appointment.Provider{
		{
			FirstName:            "Sarah",
			LastName:             "Johnson",
			Title:                "MD",
			Specialty:            "Family Medicine",
			Phone:                "(555) 234-5678",
			Email:                "sarah.johnson@carebook.com",
			Location:             "Downtown Medical Center",
			Address:              "100 Health Blvd, Suite 200, Indianapolis, IN 46204",
			Bio:                  "Dr. Sarah Johnson is a board-certified family medicine physician with over 15 years of experience. She is passionate about preventive care and building lasting relationships with her patients.",
			Rating:               4.9,
			ReviewCount:          234,
			AcceptingNewPatients: true,
			AvatarURL:            "https://api.dicebear.com/7.x/initials/svg?seed=SJ&backgroundColor=0F766E",
		},
		{
			FirstName:            "Michael",
			LastName:             "Chen",
			Title:                "MD",
			Specialty:            "Cardiology",
			Phone:                "(555) 345-6789",
			Email:                "michael.chen@carebook.com",
			Location:             "Heart & Vascular Institute",
			Address:              "250 Cardiac Way, Suite 400, Indianapolis, IN 46240",
			Bio:                  "Dr. Michael Chen specializes in interventional cardiology and has performed over 5,000 cardiac procedures. He focuses on minimally invasive techniques for heart disease treatment.",
			Rating:               4.8,
			ReviewCount:          187,
			AcceptingNewPatients: true,
			AvatarURL:            "https://api.dicebear.com/7.x/initials/svg?seed=MC&backgroundColor=0E7490",
		},
		{
			FirstName:            "Emily",
			LastName:             "Rodriguez",
			Title:                "MD",
			Specialty:            "Dermatology",
			Phone:                "(555) 456-7890",
			Email:                "emily.rodriguez@carebook.com",
			Location:             "Skin Health Clinic",
			Address:              "75 Derma Drive, Suite 150, Indianapolis, IN 46220",
			Bio:                  "Dr. Emily Rodriguez is a fellowship-trained dermatologist specializing in medical and cosmetic dermatology. She treats conditions ranging from acne to skin cancer.",
			Rating:               4.7,
			ReviewCount:          156,
			AcceptingNewPatients: true,
			AvatarURL:            "https://api.dicebear.com/7.x/initials/svg?seed=ER&backgroundColor=7C3AED",
		},
		{
			FirstName:            "James",
			LastName:             "Wilson",
			Title:                "DO",
			Specialty:            "Orthopedics",
			Phone:                "(555) 567-8901",
			Email:                "james.wilson@carebook.com",
			Location:             "Bone & Joint Center",
			Address:              "300 Ortho Ave, Suite 500, Indianapolis, IN 46250",
			Bio:                  "Dr. James Wilson is an orthopedic surgeon specializing in sports medicine and joint replacement. He has worked with professional athletes and weekend warriors alike.",
			Rating:               4.6,
			ReviewCount:          198,
			AcceptingNewPatients: true,
			AvatarURL:            "https://api.dicebear.com/7.x/initials/svg?seed=JW&backgroundColor=DC2626",
		},
		{
			FirstName:            "Priya",
			LastName:             "Patel",
			Title:                "MD",
			Specialty:            "Pediatrics",
			Phone:                "(555) 678-9012",
			Email:                "priya.patel@carebook.com",
			Location:             "Children's Wellness Center",
			Address:              "450 Kids Lane, Suite 100, Indianapolis, IN 46260",
			Bio:                  "Dr. Priya Patel is a compassionate pediatrician who has been caring for children from birth through adolescence for over 12 years. She believes in a whole-child approach to healthcare.",
			Rating:               4.9,
			ReviewCount:          312,
			AcceptingNewPatients: true,
			AvatarURL:            "https://api.dicebear.com/7.x/initials/svg?seed=PP&backgroundColor=EC4899",
		},
		{
			FirstName:            "David",
			LastName:             "Kim",
			Title:                "MD",
			Specialty:            "Internal Medicine",
			Phone:                "(555) 789-0123",
			Email:                "david.kim@carebook.com",
			Location:             "Internal Medicine Associates",
			Address:              "600 Medical Park Dr, Suite 300, Indianapolis, IN 46202",
			Bio:                  "Dr. David Kim is an internist with expertise in managing complex medical conditions. He takes a comprehensive approach to adult healthcare, focusing on disease prevention and management.",
			Rating:               4.5,
			ReviewCount:          143,
			AcceptingNewPatients: true,
			AvatarURL:            "https://api.dicebear.com/7.x/initials/svg?seed=DK&backgroundColor=2563EB",
		},
		{
			FirstName:            "Lisa",
			LastName:             "Thompson",
			Title:                "MD",
			Specialty:            "OB/GYN",
			Phone:                "(555) 890-1234",
			Email:                "lisa.thompson@carebook.com",
			Location:             "Women's Health Pavilion",
			Address:              "800 Women's Way, Suite 200, Indianapolis, IN 46208",
			Bio:                  "Dr. Lisa Thompson provides comprehensive women's healthcare including prenatal care, gynecological surgery, and family planning. She is passionate about empowering women through health education.",
			Rating:               4.8,
			ReviewCount:          267,
			AcceptingNewPatients: false,
			AvatarURL:            "https://api.dicebear.com/7.x/initials/svg?seed=LT&backgroundColor=F59E0B",
		},
		{
			FirstName:            "Robert",
			LastName:             "Harris",
			Title:                "MD",
			Specialty:            "Neurology",
			Phone:                "(555) 901-2345",
			Email:                "robert.harris@carebook.com",
			Location:             "Neuroscience Center",
			Address:              "950 Brain Blvd, Suite 600, Indianapolis, IN 46278",
			Bio:                  "Dr. Robert Harris is a board-certified neurologist specializing in headache medicine, epilepsy, and neurodegenerative disorders. He combines cutting-edge treatments with compassionate patient care.",
			Rating:               4.7,
			ReviewCount:          128,
			AcceptingNewPatients: true,
			AvatarURL:            "https://api.dicebear.com/7.x/initials/svg?seed=RH&backgroundColor=059669",
		},
	}
}
